package pipeline

// Built-in stage names. Extensions anchor on these with Before and After.
const (
	StageFrontmatter = "frontmatter"
	StageLiquid      = "liquid"
	StageMarkdown    = "markdown"
	StageIDs         = "ids"
	StageLayouts     = "layouts"
	StageManifest    = "manifest"
	StageWrite       = "write"
)

package tools

import "github.com/paperforge/paperforge/internal/workspace"

// RegisterPlannerTools installs the planner-facing catalog. Section
// editing tools are only present when the work uses a template.
func RegisterPlannerTools(r *Registry, ws *workspace.Workspace, hasTemplate bool) {
	r.Register(&WritemdTool{WS: ws})
	r.Register(&UpdateTemplateTool{WS: ws})
	r.Register(&TreeTool{WS: ws})

	r.Register(&ListAttachmentsTool{WS: ws})
	r.Register(&ReadAttachmentTool{WS: ws})
	r.Register(&GetAttachmentInfoTool{WS: ws})
	r.Register(&SearchAttachmentsTool{WS: ws})

	r.Register(&InsertLatestImageTool{WS: ws})
	r.Register(&ListOutputImagesTool{WS: ws})
	r.Register(&InsertImageByNameTool{WS: ws})
	r.Register(&GetLatestImageInfoTool{WS: ws})

	if hasTemplate {
		r.Register(&AnalyzeTemplateTool{WS: ws})
		r.Register(&GetSectionContentTool{WS: ws})
		r.Register(&UpdateSectionContentTool{WS: ws})
		r.Register(&AddSectionTool{WS: ws})
		r.Register(&RenameSectionTitleTool{WS: ws})
	}
}

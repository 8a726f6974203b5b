package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/PabloGalante/graphchat/internal/domain"
)

//go:embed workflows/*.json
var workflowFS embed.FS

const defaultThumbnail = "https://placehold.co/600x400"

type templateMeta struct {
	file        string
	description string
}

// Offered templates, in presentation order.
var templates = []templateMeta{
	{file: "basic_image_gen.json", description: "Create a basic image generation workflow"},
}

var existingNodes = []domain.NodeInfo{
	{Name: "CLIPTextEncode", Description: "Encode text prompts for conditioning.", GithubURL: "https://github.com/CompVis/clip-interrogator"},
	{Name: "VAEDecode", Description: "Decode latents to images.", GithubURL: "https://github.com/CompVis/taming-transformers"},
	{Name: "KSampler", Description: "Generate images using K-diffusion sampling.", GithubURL: "https://github.com/CompVis/k-diffusion"},
}

var nonExistingNodes = []domain.NodeInfo{
	{Name: "Upscale", Description: "Upscale images to a higher resolution.", GithubURL: "https://github.com/lllyasviel/ControlNet/blob/main/examples/upscale.py"},
	{Name: "GFPGAN", Description: "Enhance and restore faces in images.", GithubURL: "https://github.com/TencentARC/GFPGAN"},
	{Name: "RealESRGAN", Description: "Enhance and restore images using Real-ESRGAN.", GithubURL: "https://github.com/xinntao/Real-ESRGAN"},
}

// Static is a Catalog backed by templates compiled into the binary.
type Static struct {
	templates []domain.WorkflowTemplate
}

var _ domain.Catalog = (*Static)(nil)

// NewStatic reads and validates the embedded templates once.
func NewStatic() (*Static, error) {
	out := make([]domain.WorkflowTemplate, 0, len(templates))
	for _, meta := range templates {
		p := path.Join("workflows", meta.file)
		raw, err := workflowFS.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", meta.file, err)
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("template %s is not valid JSON", meta.file)
		}

		out = append(out, domain.WorkflowTemplate{
			Name:        strings.TrimSuffix(meta.file, path.Ext(meta.file)),
			Description: meta.description,
			Thumbnail:   defaultThumbnail,
			Dir:         p,
			Graph:       strings.TrimSpace(string(raw)),
		})
	}
	return &Static{templates: out}, nil
}

func (c *Static) WorkflowTemplates(_ context.Context) ([]domain.WorkflowTemplate, error) {
	return append([]domain.WorkflowTemplate(nil), c.templates...), nil
}

// SearchNodes ignores the query; the result set is fixed.
func (c *Static) SearchNodes(_ context.Context, _ string) (*domain.NodeSearchPayload, error) {
	return &domain.NodeSearchPayload{
		ExistingNodes:    append([]domain.NodeInfo(nil), existingNodes...),
		NonExistingNodes: append([]domain.NodeInfo(nil), nonExistingNodes...),
	}, nil
}

package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PabloGalante/graphchat/internal/domain"
)

const (
	workflowIntro = "Let me help you choose a workflow. Here are some options available:"
	optionsIntro  = "I can help you with the workflow. Here are some options:"
)

const explanationText = `The Load Checkpoint node can be used to load a diffusion model,
diffusion models are used to denoise latents.
This node will also provide the appropriate VAE and CLIP model.

Inputs
ckpt_name
The name of the model.

Outputs
MODEL
The model used for denoising latents.

CLIP
The CLIP model used for encoding text prompts.

VAE
The VAE model used for encoding and decoding images to and from latent space.
`

var defaultOptions = []string{
	"Create a basic image generation workflow",
	"Set up an image upscaling pipeline",
	"Build a face restoration workflow",
}

func composeWorkflowOptions(ctx context.Context, catalog domain.Catalog, _ string) (*Reply, error) {
	templates, err := catalog.WorkflowTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading workflow templates: %w", err)
	}

	options := make([]domain.Option, 0, len(templates))
	for _, t := range templates {
		options = append(options, domain.Option{Workflow: &domain.WorkflowOption{
			Name:        t.Name,
			Description: t.Description,
			Thumbnail:   t.Thumbnail,
			Dir:         t.Dir,
			Workflow:    t.Graph,
		}})
	}

	return optionsReply(domain.KindWorkflowOption, workflowIntro, options)
}

func composeOptions(_ context.Context, _ domain.Catalog, _ string) (*Reply, error) {
	options := make([]domain.Option, 0, len(defaultOptions))
	for _, o := range defaultOptions {
		options = append(options, domain.TextOption(o))
	}
	return optionsReply(domain.KindPlainMessage, optionsIntro, options)
}

func composeExplanation(_ context.Context, _ domain.Catalog, _ string) (*Reply, error) {
	return &Reply{
		Kind:    domain.KindPlainMessage,
		Text:    explanationText,
		Content: explanationText,
	}, nil
}

func composeNodeSearch(ctx context.Context, catalog domain.Catalog, userText string) (*Reply, error) {
	result, err := catalog.SearchNodes(ctx, userText)
	if err != nil {
		return nil, fmt.Errorf("searching nodes: %w", err)
	}

	placeholder, err := encode(domain.NodeSearchPayload{
		ExistingNodes:    []domain.NodeInfo{},
		NonExistingNodes: []domain.NodeInfo{},
	})
	if err != nil {
		return nil, err
	}
	content, err := encode(result)
	if err != nil {
		return nil, err
	}

	return &Reply{
		Kind:        domain.KindNodeSearch,
		Placeholder: placeholder,
		Content:     content,
	}, nil
}

// optionsReply streams intro, thinks, then delivers intro plus options.
func optionsReply(kind domain.Kind, intro string, options []domain.Option) (*Reply, error) {
	placeholder, err := encode(domain.OptionsPayload{Options: []domain.Option{}})
	if err != nil {
		return nil, err
	}
	content, err := encode(domain.OptionsPayload{AIMessage: intro, Options: options})
	if err != nil {
		return nil, err
	}

	return &Reply{
		Kind:        kind,
		Placeholder: placeholder,
		Text:        intro,
		Think:       true,
		Content:     content,
	}, nil
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding reply payload: %w", err)
	}
	return string(data), nil
}

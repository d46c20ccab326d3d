package template

import "encoding/json"

// PayloadRenderer loads the template fresh from disk for each render, so
// edits take effect without a restart.
type PayloadRenderer struct {
	loader *Loader
}

func NewPayloadRenderer(loader *Loader) *PayloadRenderer {
	return &PayloadRenderer{loader: loader}
}

func (r *PayloadRenderer) Render(nctx map[string]string) (json.RawMessage, error) {
	return RenderPayload(r.loader.Load(), nctx)
}

package httpapi

import (
	"net/http"
	"strings"

	"llmed/internal/manager"
	"llmed/internal/sampling"
	"llmed/pkg/types"
)

func generateOptions(maxTokens int, s *types.SamplingOptions) manager.GenerateOptions {
	opts := manager.GenerateOptions{MaxTokens: maxTokens}
	if s != nil {
		opts.Sampling = sampling.Params{Temperature: s.Temperature, TopK: s.TopK, TopP: s.TopP, Seed: s.Seed}
	}
	return opts
}

func validSampling(s *types.SamplingOptions) string {
	switch {
	case s == nil:
		return ""
	case s.Temperature < 0:
		return "temperature must be >= 0"
	case s.TopK < 0:
		return "top_k must be >= 0"
	case s.TopP < 0 || s.TopP > 1:
		return "top_p must be within [0, 1]"
	}
	return ""
}

// inferFailed writes err unless the client has gone away or the server is
// shutting down, in which case nobody is listening.
func inferFailed(w http.ResponseWriter, r *http.Request, op *opLog, err error, partial string) {
	if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
		op.end(499, err)
		return
	}
	op.end(writeError(w, err, partial), err)
}

func completionResponse(c manager.Completion) types.QueryResponse {
	return types.QueryResponse{Text: c.Text, FinishReason: string(c.FinishReason), Tokens: c.Tokens}
}

// embed godoc
// @Summary      Embed text
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        body  body      types.EmbedRequest  true  "Instance and text"
// @Success      200   {object}  types.EmbedResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      429   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /embed [post]
func (a *api) embed(w http.ResponseWriter, r *http.Request) {
	var req types.EmbedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	op := startOp(r, "embed", req.ModelID)
	ctx, cancel := inferContext(r)
	defer cancel()
	vec, err := a.svc.Embed(ctx, req.ModelID, req.Text)
	if err != nil {
		inferFailed(w, r, op, err, "")
		return
	}
	writeJSON(w, http.StatusOK, types.EmbedResponse{Embedding: vec})
	op.end(http.StatusOK, nil)
}

// query godoc
// @Summary      Generate text
// @Description  Runs the decode loop to EOS, an end-of-turn marker or the step bound.
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        body  body      types.QueryRequest  true  "Instance, prompt and sampling"
// @Success      200   {object}  types.QueryResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      429   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /query [post]
func (a *api) query(w http.ResponseWriter, r *http.Request) {
	var req types.QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.ModelID == "":
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	case strings.TrimSpace(req.Text) == "":
		writeJSONError(w, http.StatusBadRequest, "text is required")
		return
	case req.MaxTokens < 0:
		writeJSONError(w, http.StatusBadRequest, "max_tokens must be >= 0")
		return
	}
	if msg := validSampling(req.Sampling); msg != "" {
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}
	op := startOp(r, "query", req.ModelID)
	ctx, cancel := inferContext(r)
	defer cancel()
	c, err := a.svc.QueryWith(ctx, req.ModelID, req.Text, generateOptions(req.MaxTokens, req.Sampling))
	if err != nil {
		inferFailed(w, r, op, err, "")
		return
	}
	if e := op.debug(); e != nil {
		e.Int("tokens", c.Tokens).Str("finish", string(c.FinishReason)).Msg("query output")
	}
	writeJSON(w, http.StatusOK, completionResponse(c))
	op.end(http.StatusOK, nil)
}

// queryImage godoc
// @Summary      Generate text about an image
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        body  body      types.QueryImageRequest  true  "Instance, prompt and image path"
// @Success      200   {object}  types.QueryResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      429   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /query/image [post]
func (a *api) queryImage(w http.ResponseWriter, r *http.Request) {
	var req types.QueryImageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case req.ModelID == "":
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	case req.ImagePath == "":
		writeJSONError(w, http.StatusBadRequest, "image_path is required")
		return
	case req.MaxTokens < 0:
		writeJSONError(w, http.StatusBadRequest, "max_tokens must be >= 0")
		return
	}
	if msg := validSampling(req.Sampling); msg != "" {
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}
	op := startOp(r, "query_image", req.ModelID)
	ctx, cancel := inferContext(r)
	defer cancel()
	c, err := a.svc.QueryImageWith(ctx, req.ModelID, req.Text, req.ImagePath, generateOptions(req.MaxTokens, req.Sampling))
	if err != nil {
		inferFailed(w, r, op, err, "")
		return
	}
	writeJSON(w, http.StatusOK, completionResponse(c))
	op.end(http.StatusOK, nil)
}

// queryImageBase64 godoc
// @Summary      Generate text about an inline image
// @Description  Validates the instance; decoding is not implemented and the response is 501 with placeholder text in partial.
// @Tags         inference
// @Accept       json
// @Produce      json
// @Param        body  body      types.QueryImageBase64Request  true  "Instance, prompt and base64 image"
// @Failure      404   {object}  types.ErrorResponse
// @Failure      409   {object}  types.ErrorResponse
// @Failure      501   {object}  types.ErrorResponse
// @Router       /query/image64 [post]
func (a *api) queryImageBase64(w http.ResponseWriter, r *http.Request) {
	var req types.QueryImageBase64Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		writeJSONError(w, http.StatusBadRequest, "model_id is required")
		return
	}
	op := startOp(r, "query_image64", req.ModelID)
	text, err := a.svc.QueryImageBase64(r.Context(), req.ModelID, req.Text, req.ImageBase64)
	if err != nil {
		inferFailed(w, r, op, err, text)
		return
	}
	writeJSON(w, http.StatusOK, types.QueryResponse{Text: text})
	op.end(http.StatusOK, nil)
}

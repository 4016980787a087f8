package server

import (
	"bytes"
	stderrors "errors"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/tablemut/csvtable"
	"github.com/kbukum/tablemut/errors"
	"github.com/kbukum/tablemut/logger"
	"github.com/kbukum/tablemut/recipe"
	"github.com/kbukum/tablemut/server/middleware"
	"github.com/kbukum/tablemut/validation"
)

// Response headers set by the transform route.
const (
	HeaderRunID    = "X-Run-Id"
	HeaderRows     = "X-Tablemut-Rows"
	HeaderWarnings = "X-Tablemut-Warnings"
)

// RecipeSummary is one entry of GET /v1/recipes.
type RecipeSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Steps       []string `json:"steps"`
	Strict      bool     `json:"strict,omitempty"`
}

// transformQuery overrides the recipe's input settings for one request.
type transformQuery struct {
	HeaderLine  int    `form:"header_line" json:"header_line" validate:"gte=0"`
	HeaderMatch string `form:"header_match" json:"header_match"`
	Comma       string `form:"comma" json:"comma" validate:"omitempty,single_rune"`
	Encoding    string `form:"encoding" json:"encoding"`
}

func (q transformQuery) validate() error {
	v := validation.New()
	v.Merge("", validation.Validate(q))
	v.Custom(q.HeaderLine == 0 || q.HeaderMatch == "", "header_match", "cannot be combined with header_line")
	return v.Err()
}

func (q transformQuery) sourceOptions() []csvtable.Option {
	var opts []csvtable.Option
	switch {
	case q.HeaderLine > 0:
		opts = append(opts, csvtable.WithHeaderFunc(csvtable.HeaderAt(q.HeaderLine)))
	case q.HeaderMatch != "":
		opts = append(opts, csvtable.WithHeaderFunc(csvtable.FirstCellEquals(q.HeaderMatch)))
	}
	if q.Comma != "" {
		r, _ := utf8.DecodeRuneInString(q.Comma)
		opts = append(opts, csvtable.WithComma(r))
	}
	if q.Encoding != "" {
		opts = append(opts, csvtable.WithEncodingName(q.Encoding))
	}
	return opts
}

type recipeHandler struct {
	registry *recipe.Registry
	runner   *recipe.Runner
	log      *logger.Logger
}

func (h *recipeHandler) list(c *gin.Context) {
	recipes := h.registry.List()
	out := make([]RecipeSummary, 0, len(recipes))
	for _, r := range recipes {
		steps := make([]string, 0, len(r.Steps))
		for _, s := range r.Steps {
			steps = append(steps, s.Type)
		}
		out = append(out, RecipeSummary{Name: r.Name, Description: r.Description, Steps: steps, Strict: r.Strict})
	}
	RespondOKWithMeta(c, out, &Meta{Total: len(out)})
}

// transform runs the named recipe over the CSV request body. The output is
// buffered so that a failure mid-stream still yields an error envelope.
func (h *recipeHandler) transform(c *gin.Context) {
	r, err := h.registry.Get(c.Param("name"))
	if err != nil {
		RespondWithError(c, h.log, err)
		return
	}

	var q transformQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondWithError(c, h.log, errors.InvalidInput("query", err.Error()))
		return
	}
	if err := q.validate(); err != nil {
		RespondWithError(c, h.log, err)
		return
	}

	runID := uuid.NewString()
	var buf bytes.Buffer
	res, err := h.runner.Run(c.Request.Context(), r, c.Request.Body, &buf, recipe.Request{
		RunID:     runID,
		RequestID: middleware.GetRequestID(c),
		Source:    q.sourceOptions(),
	})
	c.Header(HeaderRunID, runID)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			err = errors.New(errors.ErrCodeInvalidInput, "request body too large", http.StatusRequestEntityTooLarge).
				WithDetail("limit", tooLarge.Limit)
		}
		RespondWithError(c, h.log, err)
		return
	}

	c.Header(HeaderRows, strconv.Itoa(res.Rows))
	c.Header(HeaderWarnings, strconv.Itoa(len(res.Warnings)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

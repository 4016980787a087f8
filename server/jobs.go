package server

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/tablemut/jobs"
	"github.com/kbukum/tablemut/logger"
)

type jobHandler struct {
	scheduler *jobs.Scheduler
	log       *logger.Logger
}

func (h *jobHandler) list(c *gin.Context) {
	out := h.scheduler.List()
	RespondOKWithMeta(c, out, &Meta{Total: len(out)})
}

func (h *jobHandler) get(c *gin.Context) {
	st, err := h.scheduler.Get(c.Param("name"))
	if err != nil {
		RespondWithError(c, h.log, err)
		return
	}
	RespondOK(c, st)
}

// run triggers the job and waits for it to finish.
func (h *jobHandler) run(c *gin.Context) {
	run, err := h.scheduler.Trigger(c.Request.Context(), c.Param("name"))
	if run.RunID != "" {
		c.Header(HeaderRunID, run.RunID)
	}
	if err != nil {
		RespondWithError(c, h.log, err)
		return
	}
	RespondOK(c, run)
}

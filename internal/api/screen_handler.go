package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/callscreen/internal/blacklist"
	"github.com/pccr10001/callscreen/internal/modem"
	"github.com/pccr10001/callscreen/internal/repository"
	"github.com/pccr10001/callscreen/internal/screen"
	"github.com/pccr10001/callscreen/internal/worker"
	"github.com/pccr10001/callscreen/pkg/logger"
)

const maxATTimeout = 2 * time.Minute

type StatusSource interface {
	Status() worker.Status
}

// ListWriter appends entries to the blacklist files.
type ListWriter interface {
	AppendNumber(number string) error
	AppendName(name string) error
}

type ScreenHandler struct {
	status StatusSource
	engine screen.Executor
	calls  *repository.CallRepository
	oracle *blacklist.Oracle
	lists  ListWriter
}

func NewScreenHandler(status StatusSource, engine screen.Executor, calls *repository.CallRepository, oracle *blacklist.Oracle, lists ListWriter) *ScreenHandler {
	return &ScreenHandler{status: status, engine: engine, calls: calls, oracle: oracle, lists: lists}
}

func (h *ScreenHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Status())
}

func (h *ScreenHandler) ListCalls(c *gin.Context) {
	f := repository.CallFilter{}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if s := c.Query("blocked"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "blocked must be true or false"})
			return
		}
		f.Blocked = &b
	}

	list, total, err := h.calls.List(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list, "total": total})
}

func (h *ScreenHandler) GetBlacklist(c *gin.Context) {
	lists, err := h.oracle.Lists()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	policy := h.oracle.Policy()
	c.JSON(http.StatusOK, gin.H{
		"numbers":               nonNil(lists.Numbers),
		"names":                 nonNil(lists.Names),
		"toll_free_prefixes":    nonNil(policy.TollFreePrefixes),
		"short_name_policy":     policy.ShortName,
		"short_name_min_length": policy.ShortNameMinLength,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type entryRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *ScreenHandler) AddNumber(c *gin.Context) {
	h.addEntry(c, "number", h.lists.AppendNumber)
}

func (h *ScreenHandler) AddName(c *gin.Context) {
	h.addEntry(c, "name", h.lists.AppendName)
}

func (h *ScreenHandler) addEntry(c *gin.Context, kind string, appendFn func(string) error) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := appendFn(req.Value); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Log.Infof("Blacklist %s added: %s", kind, strings.TrimSpace(req.Value))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ExecuteAT runs one command through the engine. It waits for the poll loop
// to release the port, so it never interleaves with caller-ID reads.
func (h *ScreenHandler) ExecuteAT(c *gin.Context) {
	var req struct {
		Cmd     string `json:"cmd" binding:"required"`
		Expect  string `json:"expect"`
		Timeout int    `json:"timeout"` // milliseconds
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cmd := strings.TrimSpace(req.Cmd)
	if !strings.HasPrefix(strings.ToUpper(cmd), "AT") || strings.ContainsAny(cmd, "\r\n") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cmd must be a single AT command"})
		return
	}

	timeout := time.Duration(req.Timeout) * time.Millisecond
	if timeout > maxATTimeout {
		timeout = maxATTimeout
	}

	res := h.engine.ExecuteContext(c.Request.Context(), modem.Request{Command: cmd, Expected: req.Expect, Timeout: timeout})
	status := http.StatusOK
	if res.Cause != nil {
		status = http.StatusBadGateway
	}
	c.JSON(status, res)
}

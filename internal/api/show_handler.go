package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/isis-master/internal/canned"
	"github.com/taoyao-code/isis-master/internal/console"
	"github.com/taoyao-code/isis-master/internal/player"
	"github.com/taoyao-code/isis-master/internal/show"
	pgstorage "github.com/taoyao-code/isis-master/internal/storage/pg"
)

// MaxProgramSize 上传程序的字节上限
const MaxProgramSize = 1 << 20

// Show 演出控制（*show.Controller）
type Show interface {
	Play(ctx context.Context, name string, loop bool) (show.Run, error)
	Stop()
	Status() show.Status
}

// RunHistory 播放记录查询（*pgstorage.RunLog）
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]pgstorage.RunRecord, error)
}

// JournalReader 日志流查询（*redisstorage.Journal）
type JournalReader interface {
	Recent(ctx context.Context, n int64) ([]show.Entry, error)
}

// ShowHandler 演出控制 API
type ShowHandler struct {
	show    Show
	store   show.ProgramStore
	console *console.Context
	runs    RunHistory
	journal JournalReader
	logger  *zap.Logger
}

// NewShowHandler runs/journal 可为 nil，对应路由返回 503
func NewShowHandler(s Show, store show.ProgramStore, cons *console.Context, runs RunHistory, journal JournalReader, logger *zap.Logger) *ShowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShowHandler{show: s, store: store, console: cons, runs: runs, journal: journal, logger: logger}
}

// StartRequest 开始播放请求
type StartRequest struct {
	Program string `json:"program" binding:"required"`
	Loop    bool   `json:"loop"`
}

// ButtonsRequest 操作台按键请求，按键名见 console.ParseButton
type ButtonsRequest struct {
	Press   []string `json:"press"`
	Release []string `json:"release"`
}

// RecordView 记录的可读形式；坏记录的 Index 为其在文件中的帧序号
type RecordView struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"` // packet | meta | bad
	Text  string `json:"text"`
}

// GetPlayer 播放器状态
func (h *ShowHandler) GetPlayer(c *gin.Context) {
	respond(c, http.StatusOK, h.show.Status())
}

// StartPlayer 加载程序并开始播放
func (h *ShowHandler) StartPlayer(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	run, err := h.show.Play(c.Request.Context(), req.Program, req.Loop)
	if err != nil {
		h.logger.Warn("start playback failed", zap.String("program", req.Program), zap.Error(err))
		fail(c, statusFor(err), err.Error())
		return
	}
	h.logger.Info("playback started via api",
		zap.String("program", run.Program),
		zap.String("run_id", run.ID.String()),
		zap.Bool("loop", run.Loop))
	respond(c, http.StatusOK, run)
}

// StopPlayer 协作式停止
func (h *ShowHandler) StopPlayer(c *gin.Context) {
	h.show.Stop()
	respond(c, http.StatusOK, h.show.Status())
}

// ListPrograms 程序库列表
func (h *ShowHandler) ListPrograms(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list programs failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list programs")
		return
	}
	if list == nil {
		list = []show.ProgramInfo{}
	}
	respond(c, http.StatusOK, gin.H{"programs": list})
}

// PutProgram 上传程序：默认请求体为预置包字节，?format=yaml 时先编译
func (h *ShowHandler) PutProgram(c *gin.Context) {
	name := c.Param("name")
	if err := show.ValidateName(name); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxProgramSize))
	if err != nil {
		fail(c, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if len(body) == 0 {
		fail(c, http.StatusBadRequest, "empty program")
		return
	}

	data := body
	result := gin.H{"name": name}
	switch c.DefaultQuery("format", "pkt") {
	case "yaml":
		compiled, res, err := canned.CompileBytes(body)
		if err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		data = compiled
		result["end_tick"] = res.EndTick
	case "pkt":
	default:
		fail(c, http.StatusBadRequest, "format must be pkt or yaml")
		return
	}

	records, bad, err := canned.ReadAll(bytes.NewReader(data))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Save(c.Request.Context(), name, data); err != nil {
		h.logger.Error("save program failed", zap.String("program", name), zap.Error(err))
		fail(c, statusFor(err), err.Error())
		return
	}
	h.logger.Info("program saved",
		zap.String("program", name),
		zap.Int("size", len(data)),
		zap.Int("records", len(records)),
		zap.Int("bad_records", len(bad)))

	result["size"] = len(data)
	result["records"] = len(records)
	result["bad_records"] = len(bad)
	respond(c, http.StatusOK, result)
}

// GetProgramRecords 解码程序的全部记录
func (h *ShowHandler) GetProgramRecords(c *gin.Context) {
	name := c.Param("name")
	data, err := h.store.Load(c.Request.Context(), name)
	if err != nil {
		fail(c, statusFor(err), err.Error())
		return
	}
	records, bad, err := canned.ReadAll(bytes.NewReader(data))
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	views := make([]RecordView, 0, len(records))
	for i, r := range records {
		kind := "packet"
		if _, ok := r.(canned.MetaRecord); ok {
			kind = "meta"
		}
		views = append(views, RecordView{Index: i, Kind: kind, Text: fmt.Sprint(r)})
	}
	badViews := make([]RecordView, 0, len(bad))
	for _, e := range bad {
		idx := -1
		var re *canned.RecordError
		if errors.As(e, &re) {
			idx = re.Index
		}
		badViews = append(badViews, RecordView{Index: idx, Kind: "bad", Text: e.Error()})
	}
	respond(c, http.StatusOK, gin.H{"name": name, "records": views, "bad": badViews})
}

// GetConsole 操作台快照
func (h *ShowHandler) GetConsole(c *gin.Context) {
	respond(c, http.StatusOK, h.console.Snapshot())
}

// SetButtons 模拟操作台按键
func (h *ShowHandler) SetButtons(c *gin.Context) {
	var req ButtonsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	press, err := parseButtons(req.Press)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	release, err := parseButtons(req.Release)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	h.console.Release(release)
	h.console.Press(press)
	respond(c, http.StatusOK, h.console.Snapshot())
}

// ListRuns 最近的播放记录
func (h *ShowHandler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		fail(c, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	limit := queryInt(c, "limit", 20)
	list, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respond(c, http.StatusOK, gin.H{"runs": list})
}

// ListJournal 最近的日志流条目
func (h *ShowHandler) ListJournal(c *gin.Context) {
	if h.journal == nil {
		fail(c, http.StatusServiceUnavailable, "journal not configured")
		return
	}
	limit := queryInt(c, "limit", 100)
	list, err := h.journal.Recent(c.Request.Context(), int64(limit))
	if err != nil {
		h.logger.Error("read journal failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to read journal")
		return
	}
	respond(c, http.StatusOK, gin.H{"entries": list})
}

func parseButtons(names []string) (console.Button, error) {
	var b console.Button
	for _, n := range names {
		v, err := console.ParseButton(n)
		if err != nil {
			return 0, err
		}
		b |= v
	}
	return b, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return def
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, show.ErrProgramNotFound):
		return http.StatusNotFound
	case errors.Is(err, show.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, player.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

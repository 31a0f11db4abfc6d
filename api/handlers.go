package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/jevenson76/atl-dashboards/board"
	"github.com/jevenson76/atl-dashboards/domain"
	"github.com/jevenson76/atl-dashboards/listapi"
)

// Options wires the API's collaborators.
type Options struct {
	Sessions Sessions
	Status   StatusReporter
	Queue    EditQueue
	Auth     Authenticator
	Deduper  Deduper
	Logger   *log.Logger
	Dispatch DispatchConfig
}

// Server holds the API's dependencies.
type Server struct {
	sessions   Sessions
	status     StatusReporter
	auth       Authenticator
	deduper    Deduper
	dispatcher *Dispatcher
	logger     *log.Logger
}

// Register wires up all API routes on the provided Echo instance. Call Close
// on the returned server at shutdown.
func Register(e *echo.Echo, opts Options) *Server {
	if opts.Logger == nil {
		panic("Logger is not initialized")
	}
	s := &Server{
		sessions:   opts.Sessions,
		status:     opts.Status,
		auth:       opts.Auth,
		deduper:    opts.Deduper,
		dispatcher: NewDispatcher(opts.Queue, opts.Dispatch, opts.Logger),
		logger:     opts.Logger,
	}

	e.GET("/healthz", healthz)

	g := e.Group("/api", RequestMetricsMiddleware(opts.Logger), GzipRequestMiddleware(postCommandMaxSize), RequireUser(opts.Auth))
	g.GET("/tasks", s.getTasks)
	g.GET("/tasks/:id", s.getTask)
	g.GET("/stats", s.getStats)
	g.PUT("/view", s.putView)
	g.POST("/commands", s.postCommands)
	g.POST("/reload", s.postReload)
	g.GET("/status", s.getStatus)
	return s
}

// Close drains the edit dispatcher.
func (s *Server) Close() {
	s.dispatcher.Close()
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) session(c echo.Context) (*board.Session, error) {
	start := time.Now()
	sess, err := s.sessions.Session(c.Request().Context(), userIDFrom(c))
	metricsFrom(c).ObserveLoad(time.Since(start))
	return sess, err
}

func (s *Server) getTasks(c echo.Context) error {
	sess, err := s.session(c)
	if err != nil {
		return s.fail(c, "load", err)
	}

	snap := sess.Store.Snapshot()
	filterParam, hasFilter := c.QueryParams()["filter"]
	searchParam, hasSearch := c.QueryParams()["search"]
	if hasFilter || hasSearch {
		if hasFilter {
			f, ok := domain.ParseFilter(filterParam[0])
			if !ok {
				metricsFrom(c).SetErrorStage("invalid_filter")
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid filter", ErrorKind: errorKindRequest})
			}
			snap.View.Filter = f
		}
		if hasSearch {
			snap.View.Search = searchParam[0]
		}
		snap.Tasks = sess.Store.Query(snap.View.Filter, snap.View.Search)
	}

	metricsFrom(c).SetTasksReturned(len(snap.Tasks))
	return c.JSON(http.StatusOK, s.boardResponse(sess, snap))
}

func (s *Server) getTask(c echo.Context) error {
	sess, err := s.session(c)
	if err != nil {
		return s.fail(c, "load", err)
	}
	task, ok := sess.Store.Get(c.Param("id"))
	if !ok {
		metricsFrom(c).SetErrorStage("not_found")
		return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found", ErrorKind: errorKindRequest})
	}
	metricsFrom(c).SetTasksReturned(1)
	return c.JSON(http.StatusOK, board.Project(task, sess.Store.View().Expanded))
}

func (s *Server) getStats(c echo.Context) error {
	sess, err := s.session(c)
	if err != nil {
		return s.fail(c, "load", err)
	}
	return c.JSON(http.StatusOK, sess.Store.Stats())
}

func (s *Server) putView(c echo.Context) error {
	sess, err := s.session(c)
	if err != nil {
		return s.fail(c, "load", err)
	}

	var req viewRequest
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, postCommandMaxSize))
	if err := dec.Decode(&req); err != nil {
		metricsFrom(c).SetErrorStage("decode")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body", ErrorKind: errorKindRequest})
	}

	if req.Filter != nil {
		f, ok := domain.ParseFilter(*req.Filter)
		if !ok {
			metricsFrom(c).SetErrorStage("invalid_filter")
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid filter", ErrorKind: errorKindRequest})
		}
		sess.Store.SetFilter(f)
	}
	if req.Search != nil {
		term := *req.Search
		if req.Debounce {
			sess.Search.Trigger(func() { sess.Store.SetSearch(term) })
		} else {
			sess.Search.Cancel()
			sess.Store.SetSearch(term)
		}
	}
	if req.Expanded != nil {
		sess.Store.SetExpanded(*req.Expanded)
	}

	snap := sess.Store.Snapshot()
	metricsFrom(c).SetTasksReturned(len(snap.Tasks))
	resp := s.boardResponse(sess, snap)
	resp.SearchPending = sess.Search.Pending()
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) postCommands(c echo.Context) error {
	ctx := c.Request().Context()
	userID := userIDFrom(c)
	m := metricsFrom(c)

	lr := io.LimitReader(c.Request().Body, postCommandMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()

	cmds := make([]domain.Command, 0, 4)
	if err := dec.Decode(&cmds); err != nil {
		m.SetErrorStage("decode")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body", ErrorKind: errorKindRequest})
	}

	sess, err := s.session(c)
	if err != nil {
		return s.fail(c, "load", err)
	}

	keys := finalizeCommands(cmds)
	added, err := s.deduper.AddMany(ctx, userID, keys)
	if err != nil {
		var recorded []string
		for i, ok := range added {
			if ok && i < len(keys) {
				recorded = append(recorded, keys[i])
			}
		}
		s.release(userID, recorded)
		m.SetErrorStage("dedupe")
		s.logger.WithError(err).Error("dedupe failed")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "idempotency store unavailable", ErrorKind: errorKindInternal})
	}

	results := make([]commandResult, 0, len(cmds))
	edits := make([]domain.Edit, 0, len(cmds))
	var rejected []string
	for i, cmd := range cmds {
		if !added[i] {
			results = append(results, commandResult{
				IdempotencyKey: cmd.IdempotencyKey,
				TaskID:         cmd.TaskID,
				Type:           cmd.Type,
				Duplicate:      true,
			})
			continue
		}
		res, edit := applyCommand(sess.Store, cmd)
		results = append(results, res)
		if edit == nil {
			rejected = append(rejected, cmd.IdempotencyKey)
			continue
		}
		edits = append(edits, *edit)
	}
	s.release(userID, rejected)
	m.SetCommands(len(cmds), len(edits))

	resp := postCommandResponse{Results: results, Stats: sess.Store.Stats(), Queued: true}
	if err := s.dispatcher.Dispatch(userID, edits); err != nil {
		s.logger.WithError(err).WithField("user", userID).Error("edit dispatch failed")
		resp.Queued = false
		resp.Error = "edits applied but not queued for reconciliation"
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) postReload(c echo.Context) error {
	start := time.Now()
	sess, err := s.sessions.Reload(c.Request().Context(), userIDFrom(c))
	metricsFrom(c).ObserveLoad(time.Since(start))
	if err != nil {
		return s.fail(c, "reload", err)
	}
	snap := sess.Store.Snapshot()
	metricsFrom(c).SetTasksReturned(len(snap.Tasks))
	return c.JSON(http.StatusOK, s.boardResponse(sess, snap))
}

func (s *Server) getStatus(c echo.Context) error {
	if s.status == nil {
		return c.JSON(http.StatusOK, listapi.Status{})
	}
	return c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) boardResponse(sess *board.Session, snap board.Snapshot) boardResponse {
	return boardResponse{
		BoardView: board.ProjectSnapshot(snap),
		Owner:     sess.Settings.OwnerName,
		Initials:  board.Initials(sess.Settings.OwnerName),
		LoadedAt:  sess.Store.LoadedAt(),
	}
}

// fail maps list-service errors to responses: configuration defects are 503,
// transport failures 502.
func (s *Server) fail(c echo.Context, stage string, err error) error {
	metricsFrom(c).SetErrorStage(stage)
	var cfgErr *listapi.ConfigError
	var trErr *listapi.TransportError
	switch {
	case errors.As(err, &cfgErr):
		s.logger.WithError(err).Error("list api misconfigured")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error(), ErrorKind: errorKindConfiguration})
	case errors.As(err, &trErr):
		s.logger.WithError(err).Warn("list api request failed")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), ErrorKind: errorKindTransport})
	default:
		s.logger.WithError(err).Error("request failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error(), ErrorKind: errorKindInternal})
	}
}

// release forgets idempotency keys of commands that were not applied so
// clients may retry them.
func (s *Server) release(userID string, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := s.deduper.Remove(ctx, userID, k); err != nil {
			s.logger.Errorf("dedupe rollback failed, err : %v, key: %s, user: %s", err, k, userID)
		}
	}
}

// finalizeCommands assigns missing idempotency keys and increasing
// timestamps, and returns the keys in order.
func finalizeCommands(cmds []domain.Command) []string {
	keys := make([]string, len(cmds))
	ts := nextTimestampRange(len(cmds))
	for i := range cmds {
		if cmds[i].IdempotencyKey == "" {
			cmds[i].IdempotencyKey = uuid.NewString()
		}
		cmds[i].ID = cmds[i].IdempotencyKey
		cmds[i].Timestamp = ts + int64(i)
		keys[i] = cmds[i].IdempotencyKey
	}
	return keys
}

// Package api - административный REST API игрового сервера.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/coin-collector/internal/auth"
	"github.com/annel0/coin-collector/internal/game"
	"github.com/annel0/coin-collector/internal/logging"
	"github.com/annel0/coin-collector/internal/middleware"
	"github.com/annel0/coin-collector/internal/replay"
	"github.com/annel0/coin-collector/internal/server"
	"github.com/annel0/coin-collector/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GameControl - то, что API может узнать у симуляции и поменять в ней
type GameControl interface {
	Snapshot() server.Snapshot
	SetLatency(inbound, outbound time.Duration) error
	Kick(id game.PlayerID) error
}

// ReplaySource - доступ к записанным снимкам
type ReplaySource interface {
	Sessions() ([]replay.SessionInfo, error)
	Load(session string, fromTick uint32, limit int) ([]replay.Frame, error)
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr    string
	Game    GameControl
	Scores  storage.ScoreRepo
	Replays ReplaySource // nil - запись выключена
	Issuer  *auth.Issuer
	Admin   *auth.AdminAccount
	Logger  *logging.Logger

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	http    *http.Server
	game    GameControl
	scores  storage.ScoreRepo
	replays ReplaySource
	issuer  *auth.Issuer
	admin   *auth.AdminAccount
	logger  *logging.Logger
	stats   *ProcessStats
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// LatencyRequest - новые искусственные задержки сервера
type LatencyRequest struct {
	InboundMs  *int `json:"inbound_ms" binding:"required"`
	OutboundMs *int `json:"outbound_ms" binding:"required"`
}

// StatusResponse - состояние симуляции и процесса
type StatusResponse struct {
	Tick          uint32     `json:"tick"`
	Players       int        `json:"players"`
	ActiveCoins   int        `json:"active_coins"`
	StartedAt     time.Time  `json:"started_at"`
	InboundDelay  int64      `json:"inbound_delay_ms"`
	OutboundDelay int64      `json:"outbound_delay_ms"`
	Process       StatusInfo `json:"process"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	router.Use(otelgin.Middleware("coin-collector-api"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("coin_collector_api", cfg.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, cfg.Gatherer)

	rs := &RestServer{
		router:  router,
		game:    cfg.Game,
		scores:  cfg.Scores,
		replays: cfg.Replays,
		issuer:  cfg.Issuer,
		admin:   cfg.Admin,
		logger:  cfg.Logger,
		stats:   NewProcessStats(),
	}
	rs.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	api.GET("/status", rs.handleStatus)
	api.GET("/players", rs.handlePlayers)
	api.GET("/leaderboard", rs.handleLeaderboard)
	api.POST("/auth/login", rs.handleLogin)

	admin := api.Group("/admin")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.PUT("/latency", rs.handleSetLatency)
		admin.POST("/players/:id/kick", rs.handleKick)
		admin.GET("/replays", rs.handleReplaySessions)
		admin.GET("/replays/:session", rs.handleReplayFrames)
	}
}

// Handler возвращает http.Handler со всеми маршрутами
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает REST сервер в отдельной горутине
func (rs *RestServer) Start() {
	go func() {
		rs.logger.Info("🌐 REST API доступен по адресу %s", rs.http.Addr)
		if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logger.Error("Ошибка REST сервера: %v", err)
		}
	}()
}

// Shutdown останавливает REST сервер
func (rs *RestServer) Shutdown(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, GenericResponse{Success: false, Message: msg})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tick":   rs.game.Snapshot().Tick,
		"time":   time.Now().Unix(),
	})
}

func (rs *RestServer) handleStatus(c *gin.Context) {
	snap := rs.game.Snapshot()
	active := 0
	for _, coin := range snap.Coins {
		if coin.Active {
			active++
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Состояние сервера",
		Data: StatusResponse{
			Tick:          snap.Tick,
			Players:       len(snap.Players),
			ActiveCoins:   active,
			StartedAt:     snap.StartedAt,
			InboundDelay:  snap.InboundDelay.Milliseconds(),
			OutboundDelay: snap.OutboundDelay.Milliseconds(),
			Process:       rs.stats.Collect(),
		},
	})
}

func (rs *RestServer) handlePlayers(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Игроки онлайн",
		Data:    rs.game.Snapshot().Players,
	})
}

func (rs *RestServer) handleLeaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 || limit > 100 {
		fail(c, http.StatusBadRequest, "limit должен быть от 1 до 100")
		return
	}
	if rs.scores == nil {
		fail(c, http.StatusServiceUnavailable, "Хранилище рекордов не настроено")
		return
	}

	top, err := rs.scores.Top(c.Request.Context(), limit)
	if err != nil {
		rs.logger.Warn("Leaderboard query failed: %v", err)
		fail(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	if top == nil {
		top = []storage.ScoreRecord{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Таблица рекордов", Data: top})
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	user, err := rs.admin.Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверное имя пользователя или пароль",
		})
		return
	}

	token, err := rs.issuer.Generate(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{Success: false, Message: "Ошибка генерации токена"})
		return
	}

	rs.logger.Info("Admin %s logged in from %s", user.Username, c.ClientIP())
	c.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, Message: "Успешная авторизация"})
}

func (rs *RestServer) handleSetLatency(c *gin.Context) {
	var req LatencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	if *req.InboundMs < 0 || *req.OutboundMs < 0 {
		fail(c, http.StatusBadRequest, "Задержка не может быть отрицательной")
		return
	}

	in := time.Duration(*req.InboundMs) * time.Millisecond
	out := time.Duration(*req.OutboundMs) * time.Millisecond
	if err := rs.game.SetLatency(in, out); err != nil {
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Задержка будет изменена на следующем тике"})
}

func (rs *RestServer) handleKick(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "Некорректный id игрока")
		return
	}

	found := false
	for _, p := range rs.game.Snapshot().Players {
		if p.State.ID == game.PlayerID(id) {
			found = true
			break
		}
	}
	if !found {
		fail(c, http.StatusNotFound, "Игрок не найден")
		return
	}

	if err := rs.game.Kick(game.PlayerID(id)); err != nil {
		fail(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Игрок будет отключён на следующем тике"})
}

func (rs *RestServer) handleReplaySessions(c *gin.Context) {
	if rs.replays == nil {
		fail(c, http.StatusNotFound, "Запись снимков выключена")
		return
	}
	sessions, err := rs.replays.Sessions()
	if err != nil {
		rs.logger.Warn("Replay sessions failed: %v", err)
		fail(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	if sessions == nil {
		sessions = []replay.SessionInfo{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Записи", Data: sessions})
}

func (rs *RestServer) handleReplayFrames(c *gin.Context) {
	if rs.replays == nil {
		fail(c, http.StatusNotFound, "Запись снимков выключена")
		return
	}
	from, err := strconv.ParseUint(c.DefaultQuery("from", "0"), 10, 32)
	if err != nil {
		fail(c, http.StatusBadRequest, "Некорректный параметр from")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		fail(c, http.StatusBadRequest, "limit должен быть от 1 до 1000")
		return
	}

	frames, err := rs.replays.Load(c.Param("session"), uint32(from), limit)
	if err != nil {
		rs.logger.Warn("Replay load failed: %v", err)
		fail(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	if len(frames) == 0 {
		fail(c, http.StatusNotFound, "Кадры не найдены")
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Кадры", Data: frames})
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/wfunc/rally-scorer/internal/api"
	"github.com/wfunc/rally-scorer/internal/config"
	"github.com/wfunc/rally-scorer/internal/database"
	"github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/game"
	"github.com/wfunc/rally-scorer/internal/game/scoring"
	"github.com/wfunc/rally-scorer/internal/logger"
	"github.com/wfunc/rally-scorer/internal/repository"
	"github.com/wfunc/rally-scorer/internal/utils"
	ws "github.com/wfunc/rally-scorer/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	redis   *redis.Client
	hub     *ws.Hub
	manager *game.MatchManager
	http    *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动比赛计分服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	handler, err := s.initComponents()
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	s.startServices(handler)

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.http.Addr),
		zap.String("websocket", s.cfg.WebSocket.Path),
	)
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// initComponents 组装比赛管理器、推送中心和路由
func (s *Server) initComponents() (http.Handler, error) {
	defaults := matchSettings(&s.cfg.Match)
	if err := defaults.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigValidate, "默认比赛配置无效")
	}

	db := database.GetDB()
	repos := repository.NewManager(db)
	journal := game.NewJournal(repos.MatchEvent())

	var persister game.StatePersister = game.NewDatabaseStatePersister(db)
	if s.cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
			PoolSize: s.cfg.Redis.PoolSize,
		})
		pingCtx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// 缓存不可用时只使用数据库
			s.logger.Warn("Redis连接失败，比赛状态仅保存到数据库",
				zap.String("addr", s.cfg.Redis.Addr),
				zap.Error(err))
			client.Close()
		} else {
			s.redis = client
			cache := game.NewRedisStatePersister(client, s.cfg.Redis.KeyPrefix, s.cfg.Redis.StateTTL)
			persister = game.NewCacheStatePersister(cache, persister)
		}
	}

	// 推送中心订阅时需要读取比赛状态，管理器创建后才可用
	var states matchStates
	s.hub = ws.NewHub(logger.WithModule("websocket"), &states, ws.Config{
		WriteTimeout:   s.cfg.WebSocket.WriteTimeout,
		PongTimeout:    s.cfg.WebSocket.PongTimeout,
		PingInterval:   s.cfg.WebSocket.PingInterval,
		MaxMessageSize: s.cfg.WebSocket.MaxMessageSize,
	})

	s.manager = game.NewMatchManager(&game.ManagerConfig{
		Logger:         logger.WithModule("match"),
		Persister:      persister,
		Journal:        journal,
		Broadcaster:    s.hub,
		Recorder:       game.NewRepositoryRecorder(repos),
		SessionTimeout: s.cfg.Match.SessionTimeout,
		IdlePauseAfter: s.cfg.Match.IdlePauseAfter,
		MaxSessions:    s.cfg.Match.MaxSessions,
	})
	states.manager = s.manager

	jwt := utils.NewJWTManager(
		s.cfg.Security.JWT.Secret,
		s.cfg.Security.JWT.Issuer,
		time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour,
	)

	gin.SetMode(s.cfg.Server.Mode)
	router := api.NewRouter(&api.Dependencies{
		DB:        db,
		Repos:     repos,
		Manager:   s.manager,
		Journal:   journal,
		Hub:       s.hub,
		JWT:       jwt,
		WebSocket: s.cfg.WebSocket,
		Defaults:  defaults,
		Logger:    logger.WithModule("api"),
	})
	return router.GetEngine(), nil
}

// startServices 启动推送中心、会话清理和HTTP服务
func (s *Server) startServices(handler http.Handler) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	if s.cfg.Match.CleanupInterval > 0 {
		s.manager.StartCleanupTask(s.ctx, s.cfg.Match.CleanupInterval)
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			s.cancel()
		}
	}()
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.ctx.Done():
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
	}

	// 内存中的会话写回存储
	closed := s.manager.CloseAll(shutdownCtx)
	s.logger.Info("比赛会话已保存", zap.Int("count", closed))

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("关闭Redis失败", zap.Error(err))
		}
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
}

// reloadConfig 重新加载配置，目前只应用日志级别
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	s.logger.Info("配置重新加载完成", zap.String("log_level", newCfg.Log.Level))
}

// matchStates 延迟绑定比赛管理器
type matchStates struct {
	manager *game.MatchManager
}

func (m *matchStates) GetMatch(ctx context.Context, matchID string) (scoring.MatchState, error) {
	return m.manager.GetMatch(ctx, matchID)
}

// matchSettings 配置文件中的默认比赛规则
func matchSettings(cfg *config.MatchConfig) scoring.Settings {
	return scoring.Settings{
		PlayType:       scoring.PlayType(cfg.PlayType),
		PointsPerGame:  cfg.PointsPerGame,
		WinBy:          cfg.WinBy,
		BestOf:         cfg.BestOf,
		SideOutScoring: cfg.SideOutScoring,
	}
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("比赛计分服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("比赛计分服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  rally-scorer [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  RALLY_SCORER_ENV       运行环境 (development/production/test)")
	fmt.Println("  RALLY_SCORER_CONFIG    配置文件路径")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  rally-scorer -config=/path/to/config.yaml")
	fmt.Println("  rally-scorer -version")
}

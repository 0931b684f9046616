package main

import (
	"ChainHoldem/config"
	"ChainHoldem/internal/auth"
	"ChainHoldem/internal/game/engine"
	"ChainHoldem/internal/game/manager"
	"ChainHoldem/internal/matchmaker"
	"ChainHoldem/internal/middleware"
	"ChainHoldem/internal/settlement"
	"ChainHoldem/internal/storage"
	"ChainHoldem/internal/utils"
	"ChainHoldem/internal/websocket"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.Load()
	utils.Init()

	//-------------------------------------------------------
	// 1. 初始化 Redis + Postgres
	//-------------------------------------------------------
	if err := storage.InitRedis(
		config.C.Redis.Addr,
		config.C.Redis.Password,
		config.C.Redis.DB,
	); err != nil {
		utils.Error.Fatalf("Redis init failed: %v", err)
	}
	if err := storage.InitPostgres(config.C.Database.DSN); err != nil {
		utils.Error.Fatalf("Postgres init failed: %v", err)
	}

	//-------------------------------------------------------
	// 2. 初始化 Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 3. 初始化 Hub（必须最先启动）
	//-------------------------------------------------------
	hub := websocket.NewHub()
	go hub.Run()

	//-------------------------------------------------------
	// 4. 结算 / 持久层 / 排行榜
	//-------------------------------------------------------
	ledger := settlement.NewChainLedger()
	sessionStore := storage.NewSessionStore(storage.DB)
	leaderboard := storage.NewLeaderboard(storage.Rdb)

	//-------------------------------------------------------
	// 5. GameManager（会话注册表 + 恢复）
	//-------------------------------------------------------
	gameMgr := manager.NewGameManager(hub, sessionStore, ledger, leaderboard, engine.Config{
		MinBet:      config.C.Game.MinBet,
		TurnSeconds: config.C.Game.TurnSeconds,
		DealPause:   time.Duration(config.C.Game.DealPauseMs) * time.Millisecond,
	})

	// 启动先清账：上次崩溃遗留的未终局会话全部退款
	if err := gameMgr.RefundAll(context.Background()); err != nil {
		utils.Error.Fatalf("startup refund sweep failed: %v", err)
	}

	//-------------------------------------------------------
	// 6. 匹配系统 Matchmaker
	//-------------------------------------------------------
	repo := matchmaker.NewRedisRepo(storage.Rdb)
	svc := matchmaker.NewService(repo, hub, ledger, config.C.Game.MinBet)
	svc.OnPairReady = gameMgr.StartSession
	gameMgr.SetPool(svc)

	//-------------------------------------------------------
	// 7. WebSocket 事件入口
	//-------------------------------------------------------
	hub.OnIncoming = gameMgr.HandleClientMessage
	hub.OnDisconnect = gameMgr.HandleDisconnect

	authGroup := r.Group("/auth")
	{
		ah := auth.NewHandler()
		authGroup.GET("/nonce", ah.Nonce)
		authGroup.POST("/nonce", ah.Nonce)
		authGroup.POST("/login", ah.Login)
	}

	secret := []byte(config.C.JWT.Secret)
	authed := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		authed.GET("/ws", websocket.ServeWS(hub))

		mh := matchmaker.NewHandler(svc)
		authed.GET("/waiting", mh.Waiting)

		authed.GET("/leaderboard", func(c *gin.Context) {
			n, _ := strconv.ParseInt(c.DefaultQuery("n", "10"), 10, 64)
			top, err := leaderboard.Top(c.Request.Context(), n)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"leaderboard": top})
		})
	}

	//-------------------------------------------------------
	// 8. 启动服务器 + 停机退款
	//-------------------------------------------------------
	go func() {
		utils.Info.Printf("Server running on %s", config.C.Server.Port)
		if err := r.Run(config.C.Server.Port); err != nil {
			utils.Error.Fatalf("server stopped: %v", err)
		}
	}()

	// 进程级故障/停机：先把所有未终局会话的钱退掉再退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Print.Warn("shutting down, refunding active sessions")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameMgr.RefundAll(ctx); err != nil {
		utils.Error.Printf("shutdown refund sweep incomplete: %v", err)
	}
	hub.Close()
}

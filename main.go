package main

import (
	"context"
	"hash/fnv"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"FreightLink/global/config"
	"FreightLink/logger"
	midsec "FreightLink/middleware/security"
	"FreightLink/module/chat/message"
	msgapi "FreightLink/module/chat/service"
	chatsvc "FreightLink/service/chat"
	"FreightLink/service/chat/handlers"
	"FreightLink/service/mgo"
	"FreightLink/service/natsx"
	"FreightLink/service/storage"
	storeredis "FreightLink/service/storage/redis"
	ids "FreightLink/tools/ids"
	safe "FreightLink/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	conf := config.Load()
	ids.SetNodeID(snowNode(conf.NodeID))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ===== 基础设施 =====
	if err := storeredis.Init(storeredis.Config{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	}); err != nil {
		logger.Log.Fatal("redis init failed", zap.Error(err))
	}
	defer func() { _ = storeredis.Close() }()

	initCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	if err := mgo.Init(initCtx, mgo.Config{
		URI:      conf.Mongo.URI,
		Database: conf.Mongo.Database,
	}); err != nil {
		logger.Log.Fatal("mongo init failed", zap.Error(err))
	}
	cancel()
	defer func() {
		closeCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		_ = mgo.Close(closeCtx)
		c()
	}()

	// ===== 网关装配 =====
	store := message.NewStore()
	registry := storage.NewConnRegistry(storage.RegistryConfig{NodeID: conf.NodeID})
	srv := chatsvc.NewServer(conf, store, registry)
	handlers.RegisterAll(srv.Dispatcher())

	nc, err := natsx.NewNatsxClient(natsx.NatsxConfig{
		URL:  conf.Nats.URL,
		Name: conf.NodeID,
	})
	if err != nil {
		logger.Log.Fatal("nats connect failed", zap.Error(err))
	}
	defer func() { _ = nc.Close() }()
	if err := srv.SubscribeStatusUpdates(nc, conf.Nats.StatusSubject); err != nil {
		logger.Log.Fatal("subscribe status updates failed", zap.Error(err))
	}

	safe.Go(func() { srv.RunJanitor(rootCtx) })

	// ===== HTTP / WS 路由 =====
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", srv.HandleWS)

	auth := midsec.DefaultOptions([]byte(conf.JWTSecret))
	msgapi.NewMessageAPI(store, auth).RegisterRoutes(r)

	httpSrv := &http.Server{Addr: conf.HTTPAddr, Handler: r}
	safe.Go(func() {
		logger.Info("gateway listening", zap.String("addr", conf.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("http serve failed", zap.Error(err))
		}
	})

	<-rootCtx.Done()
	logger.Info("shutting down")

	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	_ = httpSrv.Shutdown(shutCtx)
	srv.Shutdown()

	logger.Info("gateway stopped")
}

// snowNode 把节点名折算成雪花算法的节点号
func snowNode(nodeID string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(nodeID))
	return int64(h.Sum32() % 1024)
}

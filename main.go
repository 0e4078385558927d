package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"interview-proctor/internal/config"
	"interview-proctor/internal/events"
	"interview-proctor/internal/interviewer"
	"interview-proctor/internal/llm"
	"interview-proctor/internal/logger"
	"interview-proctor/internal/metrics"
	"interview-proctor/internal/server"
	"interview-proctor/internal/speech"
	"interview-proctor/internal/storage"
	"interview-proctor/internal/telegram"
)

func main() {
	fmt.Println("🚀 Запуск сервера интервью с прокторингом...")

	// .env необязателен: в контейнере переменные приходят из окружения
	if err := godotenv.Load(); err != nil {
		fmt.Println("ℹ️ .env не найден, используются переменные окружения")
	}

	app := config.LoadAppConfig()
	cfg, err := config.LoadOrDefault("config/interview.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации интервью: %v", err)
	}
	if err := app.LLM.Validate(); err != nil {
		log.Fatalf("Ошибка конфигурации LLM: %v", err)
	}

	zl, err := logger.Init(logger.Config{Level: app.Log.Level, Format: app.Log.Format, OutputPath: app.Log.Output})
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("🔧 Инициализация сервисов...")

	store, closeStore := openStore(ctx, app, zl)
	defer closeStore()

	counter, closeCounter := openCounter(ctx, app, zl)
	defer closeCounter()

	archive := openArchive(ctx, app)

	completer, err := llm.New(ctx, app.LLM)
	if err != nil {
		log.Fatalf("Ошибка инициализации LLM: %v", err)
	}
	fmt.Printf("✅ LLM: %s\n", app.LLM.Provider)

	var tts speech.Synthesizer
	if client := llm.NewSpeechClient(app.TTS); client != nil {
		tts = client
		fmt.Println("✅ Озвучка вопросов включена 🔊")
	} else {
		fmt.Println("⚠️ Озвучка отключена, клиенты используют локальный голос")
	}

	m := metrics.NewMetrics()
	hub := server.NewHub(zl)
	publishers := events.Multi{hub}

	if app.RabbitMQ.URL != "" {
		amqpPub, err := events.DialAMQP(app.RabbitMQ.URL, app.RabbitMQ.Exchange)
		if err != nil {
			log.Printf("⚠️ RabbitMQ недоступен: %v", err)
		} else {
			defer amqpPub.Close()
			publishers = append(publishers, amqpPub)
			fmt.Println("✅ События сессий публикуются в RabbitMQ")
		}
	}
	if app.Telegram.Token != "" && app.Telegram.ChatID != 0 {
		publishers = append(publishers, telegram.NewNotifier(telegram.New(app.Telegram.Token), app.Telegram.ChatID))
		fmt.Println("✅ Уведомления рекрутеру в Telegram включены")
	}

	manager := interviewer.New(interviewer.Options{
		Store:   store,
		Counter: counter,
		LLM:     completer,
		Archive: archive,
		Events:  publishers,
		Metrics: m,
		Config:  cfg,
		Logger:  zl,
	})

	srv := server.New(manager, tts, hub, m, app.Server, zl)

	fmt.Println("\n📋 Конфигурация:")
	fmt.Printf("• Вопросов в интервью: %d\n", cfg.GetMaxQuestions())
	fmt.Printf("• Лимит нарушений: %d\n", cfg.GetViolationLimit())
	fmt.Printf("• Веса оценки: резюме %.0f%%, интервью %.0f%%\n", cfg.Scoring.ResumeWeight*100, cfg.Scoring.InterviewWeight*100)
	fmt.Printf("\n🌐 Сервер слушает порт %d\n", app.Server.Port)

	if err := srv.Run(ctx); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
	manager.Wait()
	fmt.Println("👋 Сервер остановлен")
}

func openStore(ctx context.Context, app *config.AppConfig, zl *zap.Logger) (storage.Store, func()) {
	if app.Postgres.DSN == "" {
		fmt.Println("⚠️ DATABASE_URL не задан, сессии хранятся в памяти")
		return storage.NewMemoryStore(), func() {}
	}
	db, err := storage.OpenPostgres(ctx, app.Postgres.DSN)
	if err != nil {
		log.Fatalf("Ошибка подключения к Postgres: %v", err)
	}
	fmt.Println("✅ Postgres подключен")
	return storage.NewPostgresStore(db), func() {
		if err := db.Close(); err != nil {
			zl.Warn("postgres close failed", zap.Error(err))
		}
	}
}

func openCounter(ctx context.Context, app *config.AppConfig, zl *zap.Logger) (storage.ViolationCounter, func()) {
	if app.Redis.Addr == "" {
		return storage.NewMemoryCounter(), func() {}
	}
	client, err := storage.NewRedisClient(ctx, app.Redis.Addr, app.Redis.Password, app.Redis.DB)
	if err != nil {
		log.Printf("⚠️ Redis недоступен, счетчик нарушений в памяти: %v", err)
		return storage.NewMemoryCounter(), func() {}
	}
	fmt.Println("✅ Redis подключен")
	return storage.NewRedisCounter(client, app.Server.SessionTTL), func() {
		if err := client.Close(); err != nil {
			zl.Warn("redis close failed", zap.Error(err))
		}
	}
}

func openArchive(ctx context.Context, app *config.AppConfig) storage.Archive {
	archives := storage.MultiArchive{storage.NewFileArchive(app.Archive.Dir)}
	if app.Archive.S3Bucket == "" {
		return archives
	}
	client, err := storage.NewS3Client(ctx, app.Archive.S3Endpoint, app.Archive.S3Region, app.Archive.S3KeyID, app.Archive.S3Secret)
	if err != nil {
		log.Printf("⚠️ S3 недоступен, отчеты только в %s: %v", app.Archive.Dir, err)
		return archives
	}
	fmt.Printf("✅ Отчеты архивируются в S3 bucket %s\n", app.Archive.S3Bucket)
	return append(archives, storage.NewS3Archive(client, app.Archive.S3Bucket))
}

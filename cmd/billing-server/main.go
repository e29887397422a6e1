package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gnd-labs/scooter-saga/internal/billing"
	"github.com/gnd-labs/scooter-saga/internal/outbox"
	dbpostgres "github.com/gnd-labs/scooter-saga/pkg/db/postgres"
	pkgkafka "github.com/gnd-labs/scooter-saga/pkg/kafka"
	pkgtypes "github.com/gnd-labs/scooter-saga/pkg/types"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}
}

func main() {
	dbOpts := dbpostgres.NewPostgresConfig("billing")
	db, err := dbpostgres.NewDBConn(dbOpts)
	if err != nil {
		panic(fmt.Sprintf("unable to conn to db, err = %v", err))
	}
	defer db.Close()

	eventRepo := outbox.NewEventRepo(db)
	store := billing.NewPostgresStore(db, eventRepo)
	svc := billing.NewBillingService(store, os.Getenv("BILLING_FAULT_SCOOTER_ID"))

	kafkaCfg := pkgkafka.NewKafkaConfig("billing")
	producer, err := pkgkafka.NewKafkaProducer(kafkaCfg)
	if err != nil {
		panic(err)
	}
	defer producer.Close()

	router := pkgkafka.NewMsgRouter(producer)
	router.AddHandler(pkgtypes.RoutingKey_UserCreated, svc.OnUserCreated)
	router.AddHandler(pkgtypes.RoutingKey_RentPending, svc.OnRentPending)
	router.AddHandler(pkgtypes.RoutingKey_NotificationFailed, svc.OnRentNotificationFailed)

	consumer, err := pkgkafka.NewKafkaConsumer(kafkaCfg, router)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go consumer.RunConsumer(ctx)
	go outbox.NewPublisher(eventRepo, producer, 2*time.Second).Run(ctx)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logrus.WithField("ADDR", addr).Info("BILLING:STARTING")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("http shutdown: %v", err)
	}
	<-consumer.Done()
}

// Package app arma los services y adapters del proceso. Lo usan el router
// (rutas HTTP) y cmd/api (heartbeat, migraciones, CLI).
package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"pillsync/internal/adapters/bus/noop"
	dedupmem "pillsync/internal/adapters/dedup/memory"
	"pillsync/internal/adapters/gateway/mock"
	"pillsync/internal/adapters/sms/logsms"
	mem "pillsync/internal/adapters/storage/memory"
	pg "pillsync/internal/adapters/storage/postgres"
	"pillsync/internal/domain/alarms"
	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/devices"
	"pillsync/internal/domain/heartbeat"
	"pillsync/internal/domain/history"
	"pillsync/internal/domain/learning"
	"pillsync/internal/domain/ledger"
	"pillsync/internal/domain/patients"
	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/bus"
	"pillsync/internal/ports/dedup"
	"pillsync/internal/ports/device"
	"pillsync/internal/ports/sms"
)

// Options: todo lo que venga nil se reemplaza por la variante in-process
// (memoria, gateway mock, SMS a log, bus noop).
type Options struct {
	Log logger.Logger

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Gateway device.Gateway
	SMS     sms.Sender
	Bus     bus.Publisher
	Claims  dedup.Claimer
	Content learning.ContentSource

	SlotCount         int
	HeartbeatInterval time.Duration
	AlarmTimeout      time.Duration
	SuccessDelay      time.Duration

	// Now fija el reloj de todos los services. nil = time.Now.
	Now func() time.Time
}

type App struct {
	Log logger.Logger

	Patients  *patients.Service
	Ledger    *ledger.Service
	History   *history.Service
	Grants    *caregivers.Service
	Devices   *devices.Service
	Alarms    *alarms.Manager
	Heartbeat *heartbeat.Poller
	Learning  *learning.Service

	bus bus.Publisher
}

func New(opts Options) *App {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}

	var (
		patientRepo patients.Repository
		ledgerRepo  ledger.Repository
		historyRepo history.Repository
		grantsRepo  caregivers.Repository
		studentRepo learning.StudentRepository
	)
	if opts.DB != nil {
		patientRepo = pg.NewPatientsRepo(opts.DB)
		ledgerRepo = pg.NewLedgerRepo(opts.DB)
		historyRepo = pg.NewHistoryRepo(opts.DB)
		grantsRepo = pg.NewGrantsRepo(opts.DB)
		studentRepo = pg.NewStudentsRepo(opts.DB)
	} else {
		store := mem.NewStore()
		patientRepo = mem.NewPatientRepo(store)
		ledgerRepo = mem.NewLedgerRepo(store)
		historyRepo = mem.NewHistoryRepo(store)
		grantsRepo = mem.NewGrantRepo(store)
		studentRepo = mem.NewStudentRepo(store)
	}

	gw := opts.Gateway
	if gw == nil {
		gw = mock.New(log, mock.Options{})
	}
	sender := opts.SMS
	if sender == nil {
		sender = logsms.New(log)
	}
	pub := opts.Bus
	if pub == nil {
		pub = noop.Publisher{}
	}
	claims := opts.Claims
	if claims == nil {
		claims = dedupmem.NewClaimer()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	historySvc := history.NewService(historyRepo, pub, ledgerRepo, log).WithClock(now)
	ledgerSvc := ledger.NewService(ledgerRepo, historySvc, log).WithClock(now)
	patientsSvc := patients.NewService(patientRepo, ledgerRepo, opts.SlotCount).WithClock(now)
	grantsSvc := caregivers.NewService(grantsRepo).WithClock(now)
	devicesSvc := devices.NewService(gw, sender, patientsSvc, historySvc, log)

	manager := alarms.NewManager(gw, ledgerSvc, historySvc, log, alarms.Options{
		Timeout:      opts.AlarmTimeout,
		SuccessDelay: opts.SuccessDelay,
		Now:          now,
	})
	poller := heartbeat.NewPoller(patientsSvc, ledgerRepo, manager, claims, log, heartbeat.Options{
		Interval: opts.HeartbeatInterval,
		Now:      now,
	})

	return &App{
		Log:       log,
		Patients:  patientsSvc,
		Ledger:    ledgerSvc,
		History:   historySvc,
		Grants:    grantsSvc,
		Devices:   devicesSvc,
		Alarms:    manager,
		Heartbeat: poller,
		Learning:  learning.NewService(studentRepo, opts.Content, log),
		bus:       pub,
	}
}

// SeedDemo deja el paciente de demo para ownerUserID (idempotente).
func (a *App) SeedDemo(ctx context.Context, ownerUserID string) error {
	p, err := a.Patients.SeedDemo(ctx, ownerUserID)
	if err != nil {
		return err
	}
	a.Log.Info("demo patient ready", map[string]any{"patient_id": p.ID, "owner_user_id": ownerUserID})
	return nil
}

// StartHeartbeat corre el heartbeat en background. stop cancela el loop y
// espera a que termine; hay que llamarlo antes de cerrar DB y adapters.
func (a *App) StartHeartbeat(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Heartbeat.Run(ctx); err != nil {
			a.Log.Error("heartbeat stopped", map[string]any{"err": err})
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// Close frena timers de alarmas y cierra el bus.
func (a *App) Close() error {
	a.Alarms.Stop()
	return a.bus.Close()
}

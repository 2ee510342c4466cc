package progress

import (
	"sync"
	"time"

	"bollinger-optimizer-go/internal/models"
	"bollinger-optimizer-go/internal/persistence"

	"go.uber.org/zap"
)

// Manager tracks the live state of one optimization run.
// Progress records are applied serially by an event loop and checkpointed
// to the repository by a separate persistence loop.
type Manager struct {
	mu     sync.RWMutex
	run    *models.OptimizationRun
	latest models.Progress

	repo            persistence.RunRepository
	eventChannel    chan models.Progress
	persistenceChan chan *models.OptimizationRun
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
	logger          *zap.Logger
}

// NewManager creates a Manager for run. repo may be nil, in which case nothing is persisted.
func NewManager(run *models.OptimizationRun, repo persistence.RunRepository, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	return &Manager{
		run:             run,
		repo:            repo,
		eventChannel:    make(chan models.Progress, 1024),
		persistenceChan: make(chan *models.OptimizationRun, 128),
		stopChan:        make(chan struct{}),
		logger:          logger.With(zap.String("run_id", run.ID)),
	}
}

// Start begins the event processing and persistence loops.
func (m *Manager) Start() {
	m.save(m.Run())
	m.wg.Add(2)
	go m.eventLoop()
	go m.persistenceLoop()
	m.logger.Sugar().Info("Progress manager started.")
}

// Stop shuts the loops down. Records still buffered are dropped.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		m.logger.Sugar().Info("Progress manager stopped.")
	})
}

// OnProgress queues a progress record. It never blocks once the manager is stopped.
func (m *Manager) OnProgress(p models.Progress) {
	select {
	case m.eventChannel <- p:
	case <-m.stopChan:
	}
}

// Latest returns the most recently applied progress record.
func (m *Manager) Latest() models.Progress {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.latest
	p.Results = append([]models.OptimizationResult(nil), m.latest.Results...)
	return p
}

// Run returns a deep copy of the run record for safe, concurrent reading.
func (m *Manager) Run() *models.OptimizationRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.deepCopy()
}

// Finish stops the loops and synchronously saves the final run record.
func (m *Manager) Finish(status models.RunStatus, results []models.OptimizationResult, stats models.OptimizationStats) *models.OptimizationRun {
	m.Stop()

	m.mu.Lock()
	now := time.Now()
	m.run.Status = status
	m.run.Results = append([]models.OptimizationResult(nil), results...)
	m.run.Stats = stats
	m.run.UpdatedAt = now
	m.run.FinishedAt = now
	final := m.deepCopy()
	m.mu.Unlock()

	m.save(final)
	m.logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("results", len(results)),
		zap.Int64("tested", stats.Tested),
	)
	return final
}

// deepCopy must be called with mu held.
func (m *Manager) deepCopy() *models.OptimizationRun {
	if m.run == nil {
		return nil
	}
	runCopy := *m.run
	runCopy.Datasets = append([]string(nil), m.run.Datasets...)
	if m.run.Results != nil {
		runCopy.Results = make([]models.OptimizationResult, len(m.run.Results))
		copy(runCopy.Results, m.run.Results)
	}
	return &runCopy
}

func (m *Manager) eventLoop() {
	defer m.wg.Done()
	for {
		select {
		case p := <-m.eventChannel:
			m.apply(p)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) persistenceLoop() {
	defer m.wg.Done()
	for {
		select {
		case run := <-m.persistenceChan:
			m.save(run)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) apply(p models.Progress) {
	m.mu.Lock()
	m.latest = p
	m.run.Results = p.Results
	m.run.Stats = p.Stats
	m.run.UpdatedAt = time.Now()
	snapshot := m.deepCopy()
	m.mu.Unlock()

	if ce := m.logger.Check(zap.DebugLevel, "progress"); ce != nil {
		ce.Write(
			zap.String("dataset", p.Dataset),
			zap.Int64("current", p.Current),
			zap.Int64("total", p.Total),
			zap.String("eta", p.EstimatedTimeRemaining),
		)
	}

	// 检查点只是中间状态, 队列满时丢弃即可, 最终状态由 Finish 同步写入
	select {
	case m.persistenceChan <- snapshot:
	default:
		m.logger.Debug("checkpoint queue full, dropping snapshot")
	}
}

func (m *Manager) save(run *models.OptimizationRun) {
	if m.repo == nil || run == nil {
		return
	}
	if err := m.repo.SaveRun(run); err != nil {
		m.logger.Sugar().Errorf("Failed to save run checkpoint: %v", err)
	}
}

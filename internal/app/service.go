// Package service wires ingestion, the latest-reading store and the risk
// pipeline into the object the HTTP API and the UDP listener talk to.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/mq/queue"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/mq/worker"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/repository"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/udp"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/alert"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/dedupe"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/types"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

// Transports a reading can arrive over.
const (
	TransportUDP  = "udp"
	TransportHTTP = "http"
)

const (
	defaultTickInterval = 500 * time.Millisecond
	defaultNodeTimeout  = 5 * time.Second
	defaultQueueSize    = 1024
	defaultWorkerCount  = 2
	defaultDedupeSize   = 4096
	heatmapGrid         = 10
)

// Door is the actuator at the exit.
type Door interface {
	alert.Buzzer
	StateSetter
	Learn(from *net.UDPAddr)
}

// IngestStats counts datagrams at the service boundary.
type IngestStats struct {
	Received   int64 `json:"received"`
	Enqueued   int64 `json:"enqueued"`
	Rejected   int64 `json:"rejected"`
	Duplicates int64 `json:"duplicates"`
}

// QueueStats describes the ingestion queue.
type QueueStats struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// Stats is everything GET /api/stats returns.
type Stats struct {
	Started bool         `json:"started"`
	Engine  surge.Stats  `json:"engine"`
	Alerts  alert.Stats  `json:"alerts"`
	Ingest  IngestStats  `json:"ingest"`
	Queue   QueueStats   `json:"queue"`
	Workers worker.Stats `json:"workers"`
	Dedupe  int64        `json:"dedupe_size"`
}

// Service owns the moving parts between the wire and the engine.
type Service struct {
	mu sync.Mutex

	site         model.Site
	exit         model.NodeID
	tickInterval time.Duration
	nodeTimeout  time.Duration
	queueSize    int
	workerCount  int
	dedupeSize   int
	surgeCfg     surge.Config
	engineOpts   []surge.Option
	alertCfg     alert.Config
	alertOpts    []alert.Option
	door         Door
	now          func() time.Time
	logger       logger.Logger

	decoder  *udp.Decoder
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	store    *repository.MemoryStore
	pool     *worker.Pool
	alerts   *alert.Manager
	pipeline *Pipeline

	received   atomic.Int64
	enqueued   atomic.Int64
	rejected   atomic.Int64
	duplicates atomic.Int64

	started bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
}

// New validates the site and builds every component. Nothing runs until Start.
func New(site model.Site, opts ...Option) (*Service, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	s := &Service{
		site:         site,
		tickInterval: defaultTickInterval,
		nodeTimeout:  defaultNodeTimeout,
		queueSize:    defaultQueueSize,
		workerCount:  defaultWorkerCount,
		dedupeSize:   defaultDedupeSize,
		surgeCfg:     surge.DefaultConfig(),
		alertCfg:     alert.DefaultConfig(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	exit, _ := site.NodeByRole(model.RoleExit)
	s.exit = exit.ID

	engine, err := surge.New(site, s.surgeCfg, s.engineOpts...)
	if err != nil {
		return nil, err
	}
	alertOpts := append([]alert.Option{
		alert.WithHandler("console", alert.ConsoleHandler{Logger: logger.Get().Named("alerts")}),
	}, s.alertOpts...)
	var setter StateSetter
	if s.door != nil {
		alertOpts = append(alertOpts, alert.WithHandler("buzzer", alert.NewBuzzerHandler(s.door)))
		setter = s.door
	}
	s.alerts, err = alert.NewManager(s.alertCfg, alertOpts...)
	if err != nil {
		return nil, err
	}
	s.pipeline = NewPipeline(engine, s.alerts, setter, s.logger.Named("pipeline"))

	ids := site.IDs()
	s.decoder = udp.NewDecoder(ids)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.store = repository.NewMemoryStore(ids,
		repository.WithNodeTimeout(s.nodeTimeout),
		repository.WithClock(s.now),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, observingSink{store: s.store, pipeline: s.pipeline},
		worker.WithName("ingest-workers"),
		worker.WithLogger(s.logger.Named("workers")),
	)
	return s, nil
}

// observingSink stores a reading and, when it is the node's newest, hands it
// to the pipeline so the detectors see every sample between ticks.
type observingSink struct {
	store    *repository.MemoryStore
	pipeline *Pipeline
}

func (o observingSink) Put(ctx context.Context, r model.Reading) (bool, error) {
	stored, err := o.store.Put(ctx, r)
	if err != nil || !stored {
		return stored, err
	}
	o.pipeline.Observe(r)
	return true, nil
}

// Start launches the store workers, the liveness gauges and the tick loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.pool.Start(ctx)
	s.loops.Add(2)
	go func() {
		defer s.loops.Done()
		s.store.Run(ctx)
	}()
	go func() {
		defer s.loops.Done()
		s.tickLoop(ctx)
	}()
	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Duration("tick", s.tickInterval),
		logger.Duration("node_timeout", s.nodeTimeout),
		logger.Int("workers", s.workerCount),
		logger.Int("queue", s.queueSize),
	)
	return nil
}

// Stop halts the tick loop, drains the queue into the store and waits for
// every goroutine or ctx.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	err := s.pool.Shutdown(ctx)
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}
	s.started = false
	s.logger.Info(ctx, "service stopped")
	return err
}

func (s *Service) tickLoop(ctx context.Context) {
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the pipeline over the store's snapshot at the current time.
func (s *Service) Tick(ctx context.Context) Outcome {
	snap := s.store.Snapshot(ctx, s.now())
	metrics.UpdateQueueSize(s.queue.Len())
	return s.pipeline.Tick(ctx, snap)
}

// HandleDatagram implements udp.Handler.
func (s *Service) HandleDatagram(ctx context.Context, data []byte, from *net.UDPAddr) {
	if _, err := s.Ingest(ctx, data, TransportUDP, from); err != nil {
		s.logger.Debug(ctx, "datagram rejected",
			logger.String("from", from.String()), logger.Error(err))
	}
}

// Ingest decodes one node message and queues its reading for the store.
// Retransmissions are acknowledged as duplicates and dropped.
func (s *Service) Ingest(ctx context.Context, data []byte, transport string, from *net.UDPAddr) (types.Ingested, error) {
	s.received.Add(1)
	metrics.RecordReadingReceived(transport)

	msg, err := s.decoder.Decode(data, s.now())
	if err != nil {
		s.rejected.Add(1)
		metrics.RecordReadingRejected(rejectReason(err))
		return types.Ingested{}, err
	}
	r := msg.Reading
	if msg.Key != "" && s.deduper.SeenAndRecord(ctx, msg.Key) {
		s.duplicates.Add(1)
		metrics.RecordReadingDuplicate()
		return types.Ingested{Duplicate: true, Node: r.Node}, nil
	}
	if err := s.queue.Enqueue(ctx, r); err != nil {
		if msg.Key != "" {
			s.deduper.Unrecord(ctx, msg.Key)
		}
		s.rejected.Add(1)
		if errors.Is(err, queue.ErrFull) {
			metrics.RecordReadingRejected("queue_full")
			return types.Ingested{Node: r.Node}, fmt.Errorf("%w: node %s", ErrQueueFull, r.Node)
		}
		metrics.RecordReadingRejected("queue_closed")
		return types.Ingested{Node: r.Node}, fmt.Errorf("enqueue %s: %w", r.Node, err)
	}
	s.enqueued.Add(1)
	if s.door != nil && from != nil && r.Node == s.exit {
		s.door.Learn(from)
	}
	return types.Ingested{Accepted: true, Node: r.Node}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, model.ErrUnknownNode):
		return "unknown_node"
	case errors.Is(err, udp.ErrMissingNode):
		return "missing_node"
	case errors.Is(err, udp.ErrMissingDistance):
		return "missing_distance"
	}
	return "malformed"
}

// Site returns the deployment.
func (s *Service) Site() model.Site { return s.site }

// State returns the latest tick as a dashboard view.
func (s *Service) State() types.State { return types.FromResult(s.pipeline.Last()) }

// Zones returns the per-zone view of the latest tick.
func (s *Service) Zones() []types.Zone { return types.ZonesFromResult(s.pipeline.Last()) }

// Clusters returns the clusters of the latest tick and the device heatmap.
func (s *Service) Clusters() types.Clusters {
	last := s.pipeline.Last()
	clusters := last.Clusters
	if clusters == nil {
		clusters = []model.Cluster{}
	}
	return types.Clusters{Clusters: clusters, Count: len(clusters), Heatmap: s.pipeline.Heatmap(heatmapGrid)}
}

// Alerts returns up to limit alerts, newest first.
func (s *Service) Alerts(limit int) types.Alerts {
	h := s.alerts.History(limit)
	if h == nil {
		h = []model.Alert{}
	}
	return types.Alerts{Alerts: h, Count: len(h)}
}

// Nodes returns the liveness of every node.
func (s *Service) Nodes(ctx context.Context) types.Nodes {
	statuses := s.store.Nodes(ctx, s.now())
	out := types.Nodes{Nodes: make([]types.Node, 0, len(statuses)), Total: len(statuses)}
	for _, st := range statuses {
		n := types.Node{Node: st.Node, Online: st.Online, Received: st.Received, Reading: st.Reading}
		if spec, ok := s.site.Node(st.Node); ok {
			n.Role = spec.Role
		}
		if !st.LastSeen.IsZero() {
			seen := st.LastSeen
			n.LastSeen = &seen
			n.AgeSeconds = types.Seconds(st.Age)
		}
		if st.Online {
			out.Online++
		}
		out.Nodes = append(out.Nodes, n)
	}
	return out
}

// Stats returns counters from every component.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	return Stats{
		Started: started,
		Engine:  s.pipeline.EngineStats(),
		Alerts:  s.alerts.Stats(),
		Ingest: IngestStats{
			Received:   s.received.Load(),
			Enqueued:   s.enqueued.Load(),
			Rejected:   s.rejected.Load(),
			Duplicates: s.duplicates.Load(),
		},
		Queue:   QueueStats{Length: s.queue.Len(), Capacity: s.queue.Cap()},
		Workers: s.pool.Stats(),
		Dedupe:  s.deduper.Size(),
	}
}

// Alerter exposes the alert manager for late handler registration.
func (s *Service) Alerter() *alert.Manager { return s.alerts }

// Ready reports whether Start has run.
func (s *Service) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

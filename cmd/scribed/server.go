package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voiceloom/meetscribe/internal/audio"
	"github.com/voiceloom/meetscribe/internal/config"
	"github.com/voiceloom/meetscribe/internal/models"
	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/internal/profile"
	"github.com/voiceloom/meetscribe/internal/session"
	"github.com/voiceloom/meetscribe/internal/telemetry"
	"github.com/voiceloom/meetscribe/pkg/api"
)

var daemonLog = obs.New("scribed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// daemon owns every running session and the backends/services they share.
// One daemon serves both the WebSocket event stream and the gRPC control
// plane (control.go), mirroring the teacher's single Server fronting both
// transports.
type daemon struct {
	cfg      *config.ScribeConfig
	backends session.Backends
	models   *models.Manager
	capture  *audio.Capture
	recon    *profile.Reconciler
	metrics  *telemetry.Metrics

	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newDaemon(cfg *config.ScribeConfig, backends session.Backends, mgr *models.Manager, recon *profile.Reconciler, metrics *telemetry.Metrics) *daemon {
	return &daemon{
		cfg:      cfg,
		backends: backends,
		models:   mgr,
		capture:  audio.NewCapture(""),
		recon:    recon,
		metrics:  metrics,
		sessions: make(map[string]*session.Session),
	}
}

// startSession creates and starts a new session. sourcePath empty means
// live microphone capture via internal/audio.Capture; non-empty loads the
// whole file with audio.LoadWAV and feeds it as one pushed chunk, matching
// §4.A's batch-input contract.
func (d *daemon) startSession(ctx context.Context, sourcePath string) (string, <-chan api.Event, error) {
	id := uuid.NewString()

	sessCfg := config.ToSessionConfig(d.cfg)
	sess, err := session.New(id, sessCfg, d.backends, d.recon, d.metrics)
	if err != nil {
		return "", nil, fmt.Errorf("scribed: new session %s: %w", id, err)
	}

	events := sess.Subscribe("daemon:" + id)

	d.mu.Lock()
	d.sessions[id] = sess
	d.mu.Unlock()

	if sourcePath != "" {
		go d.runBatch(ctx, sess, sourcePath)
		return id, events, nil
	}

	audioCfg := audio.Config{SampleRate: sessCfg.SampleRate, Channels: 1, NormalizeRMS: true, HighPassFilter: true}
	source, err := d.capture.Open(ctx, audioCfg)
	if err != nil {
		d.mu.Lock()
		delete(d.sessions, id)
		d.mu.Unlock()
		return "", nil, fmt.Errorf("scribed: open capture for session %s: %w", id, err)
	}
	conditioner := audio.NewConditioner(audioCfg)
	if err := sess.Start(ctx, source, conditioner); err != nil {
		source.Close()
		d.mu.Lock()
		delete(d.sessions, id)
		d.mu.Unlock()
		return "", nil, fmt.Errorf("scribed: start session %s: %w", id, err)
	}

	return id, events, nil
}

// runBatch loads sourcePath whole and pushes it through the pipeline in one
// chunk, then stops the session; used for file-input/offline sessions where
// there is no live audio.Source to drive Start's pull loop.
func (d *daemon) runBatch(ctx context.Context, sess *session.Session, sourcePath string) {
	frame, err := audio.LoadWAV(sourcePath)
	if err != nil {
		daemonLog.Errorf("batch load %s: %v", sourcePath, err)
		if _, stopErr := sess.Stop(ctx); stopErr != nil {
			daemonLog.Warnf("batch stop after load failure: %v", stopErr)
		}
		return
	}
	if err := sess.PushSamples(ctx, frame.Samples, 0); err != nil {
		daemonLog.Errorf("batch push %s: %v", sourcePath, err)
	}
	if _, err := sess.Stop(ctx); err != nil {
		daemonLog.Warnf("batch stop %s: %v", sourcePath, err)
	}
}

func (d *daemon) stopSession(ctx context.Context, sessionID string) (*api.Complete, error) {
	d.mu.Lock()
	sess, ok := d.sessions[sessionID]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("scribed: unknown session %s", sessionID)
	}

	complete, err := sess.Stop(ctx)

	d.mu.Lock()
	delete(d.sessions, sessionID)
	d.mu.Unlock()

	return complete, err
}

// httpHandler builds the session control + event-stream HTTP surface: plain
// JSON endpoints for create/stop/list/segments, plus /ws for the WebSocket
// event stream clients that prefer it over gRPC.
func (d *daemon) httpHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", d.handleSessions)
	mux.HandleFunc("/sessions/", d.handleSession)
	mux.HandleFunc("/ws", d.handleWebSocket)
	mux.HandleFunc("/models", d.handleModels)
	return mux
}

// handleModels reports the cache status of every (role, tier) artifact
// §4.K names, backed by the same cache_metadata.json the model manager
// persists to disk — useful for an operator checking why a tier is
// missing before reaching for scribectl.
func (d *daemon) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type entry struct {
		Role   string `json:"role"`
		Tier   string `json:"tier"`
		Cached bool   `json:"cached"`
		Status any    `json:"status,omitempty"`
	}
	roles := []models.Role{models.RoleASR, models.RoleVAD, models.RoleEmbedder}
	tiers := []models.Tier{models.Standard, models.HighAccuracy, models.Turbo}

	var out []entry
	for _, role := range roles {
		for _, tier := range tiers {
			status, ok := d.models.Status(role, tier)
			e := entry{Role: string(role), Tier: string(tier), Cached: ok}
			if ok {
				e.Status = status
			}
			out = append(out, e)
		}
	}
	writeJSON(w, http.StatusOK, map[string][]entry{"models": out})
}

func (d *daemon) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			SourcePath string `json:"source_path"`
		}
		_ = decodeJSON(r, &body)
		id, _, err := d.startSession(r.Context(), body.SourcePath)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
	case http.MethodGet:
		d.mu.Lock()
		ids := make([]string, 0, len(d.sessions))
		for id := range d.sessions {
			ids = append(ids, id)
		}
		d.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (d *daemon) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/sessions/"):]
	suffix := ""
	for i, c := range id {
		if c == '/' {
			suffix = id[i+1:]
			id = id[:i]
			break
		}
	}

	switch {
	case r.Method == http.MethodDelete && suffix == "":
		complete, err := d.stopSession(r.Context(), id)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, complete)
	case r.Method == http.MethodGet && suffix == "segments":
		d.mu.Lock()
		sess, ok := d.sessions[id]
		d.mu.Unlock()
		if !ok {
			writeJSONError(w, http.StatusNotFound, fmt.Errorf("unknown session %s", id))
			return
		}
		writeJSON(w, http.StatusOK, sess.Segments())
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleWebSocket upgrades and streams every session's events to the
// client as JSON frames, mirroring the teacher's wsClient.Send(Message)
// loop but over pkg/api.Event instead of the teacher's Message type.
func (d *daemon) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		daemonLog.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	clientID := "ws:" + uuid.NewString()
	merged := make(chan api.Event, 256)

	d.mu.Lock()
	subs := make([]<-chan api.Event, 0, len(d.sessions))
	for _, sess := range d.sessions {
		subs = append(subs, sess.Subscribe(clientID))
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, ch := range subs {
		wg.Add(1)
		go func(ch <-chan api.Event) {
			defer wg.Done()
			for ev := range ch {
				select {
				case merged <- ev:
				default:
					daemonLog.Warnf("websocket client %s: event dropped, slow consumer", clientID)
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	var writeMu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-merged:
			if !ok {
				return
			}
			writeMu.Lock()
			err := conn.WriteJSON(ev)
			writeMu.Unlock()
			if err != nil {
				daemonLog.Warnf("websocket client %s: write failed: %v", clientID, err)
				return
			}
		case <-done:
			return
		case <-time.After(30 * time.Second):
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

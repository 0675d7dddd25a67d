// Package session implements the per-connection call orchestrator: it owns
// the lesson state machine, the audio buffer, the turn pipeline and the
// asynchronous persistence queue for one websocket.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pitchdrill/pitchdrill/pkg/core"
	"github.com/pitchdrill/pitchdrill/pkg/core/chat"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/stt"
	"github.com/pitchdrill/pitchdrill/pkg/core/voice/tts"
	"github.com/pitchdrill/pitchdrill/pkg/gateway/live/protocol"
	"github.com/pitchdrill/pitchdrill/pkg/lessons"
	"github.com/pitchdrill/pitchdrill/pkg/store"
)

// MinRecordingBytes is the smallest recording the pipeline accepts.
// Anything shorter cannot contain speech worth transcribing.
const MinRecordingBytes = 1000

// Canonical client-facing error messages. Raw provider detail never
// crosses the socket.
const (
	MsgNoSpeech    = "No speech was detected."
	MsgTooShort    = "Recording too short."
	MsgNoLesson    = "Select a lesson first."
	MsgRateLimited = "The AI service is busy right now. Please wait a moment and try again."
	MsgInternal    = "Something went wrong on our end. Please try again."
)

type Config struct {
	ProviderTimeout     time.Duration
	WriteTimeout        time.Duration
	MaxAudioBufferBytes int
	MaxTokens           int
	ChatModel           string
	Voice               string
	Language            string
	PersistAttempts     int
	PersistTimeout      time.Duration
}

type Dependencies struct {
	Conn          *websocket.Conn
	Logger        *slog.Logger
	Chat          chat.Provider
	STT           stt.Provider
	TTS           tts.Provider
	Conversations store.ConversationStore
	UserID        string
	SessionID     string
	Config        Config
	Now           func() time.Time
}

type persistTask struct {
	lessonID      int
	userText      string
	assistantText string
	outcome       store.Outcome
}

// Session drives one live practice call.
type Session struct {
	conn   *websocket.Conn
	logger *slog.Logger

	chat          chat.Provider
	stt           stt.Provider
	tts           tts.Provider
	conversations store.ConversationStore

	userID    string
	sessionID string
	cfg       Config
	now       func() time.Time

	writeMu sync.Mutex

	mu       sync.Mutex
	lesson   *lessons.Lesson
	history  []chat.Message
	audioBuf []byte
	ended    bool

	processing atomic.Bool
	pipelines  sync.WaitGroup

	persistCh   chan persistTask
	persistDone chan struct{}
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Chat == nil {
		return nil, fmt.Errorf("chat provider is required")
	}
	if deps.STT == nil {
		return nil, fmt.Errorf("stt provider is required")
	}
	if deps.Conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if deps.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Config.ProviderTimeout <= 0 {
		deps.Config.ProviderTimeout = 30 * time.Second
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = 5 * time.Second
	}
	if deps.Config.MaxAudioBufferBytes <= 0 {
		deps.Config.MaxAudioBufferBytes = 8 << 20
	}
	if deps.Config.MaxTokens <= 0 {
		deps.Config.MaxTokens = 512
	}
	if deps.Config.PersistAttempts <= 1 {
		deps.Config.PersistAttempts = 2
	}
	if deps.Config.PersistTimeout <= 0 {
		deps.Config.PersistTimeout = 10 * time.Second
	}

	return &Session{
		conn:          deps.Conn,
		logger:        deps.Logger.With("session_id", deps.SessionID),
		chat:          deps.Chat,
		stt:           deps.STT,
		tts:           deps.TTS,
		conversations: deps.Conversations,
		userID:        deps.UserID,
		sessionID:     deps.SessionID,
		cfg:           deps.Config,
		now:           deps.Now,
		persistCh:     make(chan persistTask, 16),
		persistDone:   make(chan struct{}),
	}, nil
}

// Run reads frames until the connection drops. A pipeline that is in
// flight when the client disconnects still runs to completion so its turn
// is persisted; emits to the dead connection are dropped.
func (s *Session) Run() error {
	go s.persistWorker()

	var readErr error
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				readErr = err
			}
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.handleAudioChunk(data)
		case websocket.TextMessage:
			s.handleTextFrame(data)
		}
	}

	s.pipelines.Wait()
	close(s.persistCh)
	<-s.persistDone

	s.mu.Lock()
	abandoned := !s.ended && len(s.history) > 0
	turns := len(s.history) / 2
	s.mu.Unlock()
	if abandoned {
		s.logger.Info("call abandoned before a termination marker", "turns", turns)
	}
	return readErr
}

func (s *Session) handleTextFrame(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		s.sendErr(err.Error())
		return
	}

	switch m := msg.(type) {
	case protocol.ClientSelectLesson:
		s.handleSelectLesson(m.LessonID)
	case protocol.ClientAudio:
		raw, err := m.Bytes()
		if err != nil {
			s.sendErr(err.Error())
			return
		}
		s.handleAudioChunk(raw)
	case protocol.ClientStop:
		s.handleStop()
	}
}

func (s *Session) handleSelectLesson(lessonID int) {
	if s.isEnded() {
		return
	}
	if s.processing.Load() {
		s.sendErr("A turn is being processed. Wait for it to finish before switching lessons.")
		return
	}

	lesson, ok := lessons.ByID(lessonID)
	if !ok {
		s.logger.Warn("unknown lesson requested", "lesson_id", lessonID)
		s.sendErr(fmt.Sprintf("Unknown lesson %d.", lessonID))
		return
	}

	s.mu.Lock()
	s.lesson = &lesson
	s.history = nil
	s.audioBuf = nil
	s.mu.Unlock()

	s.logger.Info("lesson selected", "lesson_id", lesson.ID, "level", lesson.LevelLabel)
}

func (s *Session) handleAudioChunk(data []byte) {
	if s.isEnded() || len(data) == 0 {
		return
	}
	if s.processing.Load() {
		s.sendErr("Still processing your last turn. Hold on a moment.")
		return
	}

	s.mu.Lock()
	if s.lesson == nil {
		s.mu.Unlock()
		s.sendErr("Select a lesson before sending audio.")
		return
	}
	if len(s.audioBuf)+len(data) > s.cfg.MaxAudioBufferBytes {
		s.mu.Unlock()
		s.sendErr("Recording is too long. Stop and try a shorter take.")
		return
	}
	s.audioBuf = append(s.audioBuf, data...)
	s.mu.Unlock()
}

func (s *Session) handleStop() {
	if s.isEnded() {
		return
	}

	s.mu.Lock()
	if s.lesson == nil {
		s.mu.Unlock()
		s.sendJSON(protocol.NewStopped(false, MsgNoLesson))
		s.sendErr(MsgNoLesson)
		return
	}
	lesson := *s.lesson
	s.mu.Unlock()

	// At most one pipeline per session.
	if !s.processing.CompareAndSwap(false, true) {
		s.sendJSON(protocol.NewStopped(false, "Already processing."))
		return
	}

	s.mu.Lock()
	audio := s.audioBuf
	s.audioBuf = nil
	history := append([]chat.Message(nil), s.history...)
	s.mu.Unlock()

	s.sendJSON(protocol.NewStopped(true, ""))

	if len(audio) < MinRecordingBytes {
		s.processing.Store(false)
		s.sendErr(MsgTooShort)
		return
	}

	s.pipelines.Add(1)
	go s.runPipeline(lesson, history, audio)
}

// runPipeline executes one turn: transcribe, complete, detect markers,
// synthesize, emit and enqueue persistence. On failure the session
// returns to idle, the turn is not added to history and the cleared
// audio buffer stays cleared.
func (s *Session) runPipeline(lesson lessons.Lesson, history []chat.Message, audio []byte) {
	defer s.pipelines.Done()
	defer s.processing.Store(false)

	start := s.now()

	transcript, err := s.transcribe(audio)
	if err != nil {
		s.failTurn("transcribe", err)
		return
	}
	s.sendJSON(protocol.NewTranscription(transcript))

	reply, err := s.complete(lesson, history, transcript)
	if err != nil {
		s.failTurn("complete", err)
		return
	}

	outcome, clean, ambiguous := ExtractOutcome(reply)
	if ambiguous {
		s.logger.Warn("both termination markers present, honoring the earliest",
			"lesson_id", lesson.ID)
	}

	s.mu.Lock()
	s.history = append(s.history,
		chat.Message{Role: chat.RoleUser, Content: transcript},
		chat.Message{Role: chat.RoleAssistant, Content: clean},
	)
	if outcome != store.OutcomeNone {
		s.ended = true
	}
	s.mu.Unlock()

	s.sendJSON(protocol.NewText(clean))

	if clean != "" && s.tts != nil {
		s.speak(clean)
	}

	s.enqueuePersist(persistTask{
		lessonID:      lesson.ID,
		userText:      transcript,
		assistantText: clean,
		outcome:       outcome,
	})

	s.logger.Info("turn complete",
		"lesson_id", lesson.ID,
		"outcome", outcome.String(),
		"duration_ms", s.now().Sub(start).Milliseconds())

	if outcome != store.OutcomeNone {
		s.sendJSON(protocol.NewEnded(outcome.String()))
		s.closeConn()
	}
}

func (s *Session) transcribe(audio []byte) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProviderTimeout)
	defer cancel()

	tr, err := s.stt.Transcribe(ctx, audio, stt.TranscribeOptions{Language: s.cfg.Language})
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

func (s *Session) complete(lesson lessons.Lesson, history []chat.Message, userText string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProviderTimeout)
	defer cancel()

	messages := append(history, chat.Message{Role: chat.RoleUser, Content: userText})
	return s.chat.Complete(ctx, chat.Request{
		Model:     s.cfg.ChatModel,
		System:    lessons.SystemPrompt(lesson),
		Messages:  messages,
		MaxTokens: s.cfg.MaxTokens,
	})
}

// speak synthesizes the reply. Synthesis failure degrades the turn to
// text only; the turn still counts as successful.
func (s *Session) speak(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProviderTimeout)
	defer cancel()

	syn, err := s.tts.Synthesize(ctx, text, tts.SynthesizeOptions{
		Voice:    s.cfg.Voice,
		Language: s.cfg.Language,
	})
	if err != nil {
		s.logger.Warn("tts failed, turn degrades to text", "error", err)
		return
	}
	s.writeBinary(syn.Audio)
}

// failTurn maps a pipeline error onto one of the canonical messages.
func (s *Session) failTurn(stage string, err error) {
	switch core.TypeOf(err) {
	case core.ErrEmptyInput:
		s.sendErr(MsgNoSpeech)
	case core.ErrRateLimit:
		s.sendErr(MsgRateLimited)
	default:
		s.logger.Error("turn failed", "stage", stage, "error", err)
		s.sendErr(MsgInternal)
	}
}

// persistWorker applies turns in FIFO order. The conversation row is
// resolved lazily per lesson so GetOrCreate's UNFINISHED scoping keeps
// reconnects idempotent.
func (s *Session) persistWorker() {
	defer close(s.persistDone)

	conversationIDs := make(map[int]string)
	for task := range s.persistCh {
		id := conversationIDs[task.lessonID]
		if id == "" {
			conv, err := s.withPersistRetry("get or create conversation", func(ctx context.Context) (*store.Conversation, error) {
				return s.conversations.GetOrCreate(ctx, s.userID, task.lessonID)
			})
			if err != nil {
				s.logger.Error("dropping turn, conversation unresolved",
					"lesson_id", task.lessonID, "error", err)
				continue
			}
			id = conv.ID
			conversationIDs[task.lessonID] = id
		}

		if _, err := s.withPersistRetry("append turn", func(ctx context.Context) (*store.Conversation, error) {
			return s.conversations.AppendTurn(ctx, id, task.userText, task.assistantText, task.outcome)
		}); err != nil {
			s.logger.Error("failed to persist turn",
				"conversation_id", id, "outcome", task.outcome.String(), "error", err)
		}
	}
}

func (s *Session) withPersistRetry(op string, fn func(context.Context) (*store.Conversation, error)) (*store.Conversation, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.PersistAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		conv, err := fn(ctx)
		cancel()
		if err == nil {
			return conv, nil
		}
		lastErr = err
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		s.logger.Warn("persistence attempt failed", "op", op, "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

func (s *Session) enqueuePersist(task persistTask) {
	select {
	case s.persistCh <- task:
	default:
		s.logger.Error("persistence queue full, dropping turn", "lesson_id", task.lessonID)
	}
}

func (s *Session) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Session) sendErr(message string) {
	s.sendJSON(protocol.NewErr(message))
}

func (s *Session) sendJSON(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debug("write dropped", "error", err)
	}
}

func (s *Session) writeBinary(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Debug("write dropped", "error", err)
	}
}

func (s *Session) closeConn() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline := s.now().Add(s.cfg.WriteTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"), deadline)
	_ = s.conn.Close()
}

// Cancel force-closes the connection. Used during server drain.
func (s *Session) Cancel() {
	s.closeConn()
}

// Notify delivers a server notice, such as a drain warning, as an err
// frame so existing clients surface it without a new frame type.
func (s *Session) Notify(message string) error {
	s.sendErr(message)
	return nil
}

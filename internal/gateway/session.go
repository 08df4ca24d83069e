package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linxGnu/gosmpp"
	"github.com/linxGnu/gosmpp/data"
	"github.com/linxGnu/gosmpp/pdu"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/segmenter"
)

// Config holds the upstream gateway connection parameters.
type Config struct {
	Host           string
	Port           int
	SystemID       string
	Password       string
	SystemType     string
	SourceAddr     string
	EnquireLink    time.Duration
	SubmitTimeout  time.Duration
	ConnectTimeout time.Duration
	RebindDelay    time.Duration
	MaxWindowSize  uint
	SourceAddrTON  byte
	SourceAddrNPI  byte
	DestAddrTON    byte
	DestAddrNPI    byte
}

func (c *Config) applyDefaults() error {
	if c.Host == "" || c.Port == 0 || c.SystemID == "" {
		return errors.New("missing required gateway config fields (Host, Port, SystemID)")
	}
	if c.EnquireLink <= 0 {
		c.EnquireLink = 30 * time.Second
	}
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 10 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.RebindDelay <= 0 {
		c.RebindDelay = 5 * time.Second
	}
	if c.MaxWindowSize <= 0 || c.MaxWindowSize > 255 {
		c.MaxWindowSize = 32
	}
	return nil
}

// PushHandler receives the raw short message of every inbound delivery push.
type PushHandler func(ctx context.Context, raw string)

// SubmitRequest is one outbound message submit.
type SubmitRequest struct {
	MessageID int64 // internal message id, for log correlation
	Phone     string
	Body      string
}

// submitOutcome resolves a pending submit from the response callbacks.
type submitOutcome struct {
	providerMsgID string
	status        uint32
	timedOut      bool
	closed        bool
}

// SessionManager owns the single persistent bound session to the upstream
// gateway. Outbound submits are pipelined against the window and resolved by
// acknowledgment callbacks; inbound pushes are dispatched on their own
// goroutines so neither direction blocks the other.
type SessionManager struct {
	cfg       Config
	segmenter segmenter.Segmenter

	session *gosmpp.Session
	state   atomic.Int32
	connMu  sync.Mutex

	pushHandler PushHandler
	handlerMu   sync.RWMutex

	pending sync.Map // map[int32]chan submitOutcome

	stopped atomic.Bool
	wg      sync.WaitGroup
}

func NewSessionManager(cfg Config, seg segmenter.Segmenter) (*SessionManager, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	m := &SessionManager{cfg: cfg, segmenter: seg}
	m.state.Store(int32(StateDisconnected))
	return m, nil
}

// State returns the current session state.
func (m *SessionManager) State() State {
	return State(m.state.Load())
}

// RegisterPushHandler sets the callback for inbound delivery pushes.
func (m *SessionManager) RegisterPushHandler(h PushHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.pushHandler = h
}

// EnsureConnection rebinds unless the session is currently bound. Every
// call site goes through it; callers never manage connection state.
func (m *SessionManager) EnsureConnection(ctx context.Context) error {
	if m.State() == StateBound {
		return nil
	}
	return m.Connect(ctx)
}

// Connect establishes and binds the session as a transceiver.
func (m *SessionManager) Connect(ctx context.Context) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.stopped.Load() {
		return errors.New("session manager is shut down")
	}
	if m.State() == StateBound {
		return nil
	}

	m.state.Store(int32(StateBinding))
	slog.InfoContext(ctx, "Binding gateway session",
		slog.String("host", m.cfg.Host),
		slog.Int("port", m.cfg.Port),
		slog.String("system_id", m.cfg.SystemID),
	)

	auth := gosmpp.Auth{
		SMSC:       fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port),
		SystemID:   m.cfg.SystemID,
		Password:   m.cfg.Password,
		SystemType: m.cfg.SystemType,
	}
	connector := gosmpp.TRXConnector(gosmpp.NonTLSDialer, auth)

	settings := gosmpp.Settings{
		EnquireLink:  m.cfg.EnquireLink,
		ReadTimeout:  m.cfg.SubmitTimeout + 5*time.Second,
		WriteTimeout: m.cfg.SubmitTimeout,

		WindowedRequestTracking: &gosmpp.WindowedRequestTracking{
			MaxWindowSize:         uint8(m.cfg.MaxWindowSize),
			PduExpireTimeOut:      m.cfg.SubmitTimeout,
			ExpireCheckTimer:      5 * time.Second,
			EnableAutoRespond:     false,
			OnReceivedPduRequest:  m.handleReceivedPduRequest,
			OnExpectedPduResponse: m.handleExpectedPduResponse,
			OnExpiredPduRequest:   m.handleExpiredPduRequest,
			OnClosePduRequest:     m.handleClosedPduRequest,
		},

		OnSubmitError:    m.onSubmitError,
		OnReceivingError: m.onReceivingError,
		OnRebindingError: m.onRebindingError,
		OnClosed:         m.onClosed,
	}

	sess, err := gosmpp.NewSession(connector, settings, m.cfg.ConnectTimeout)
	if err != nil {
		m.state.Store(int32(StateError))
		slog.ErrorContext(ctx, "Gateway bind failed", slog.Any("error", err))
		return apperrors.Providerf(apperrors.CodeBindFailed, 0, "gateway bind failed: %v", err)
	}

	m.session = sess
	m.state.Store(int32(StateBound))
	slog.InfoContext(ctx, "Gateway session bound")
	return nil
}

// Disconnect unbinds and closes the session permanently.
func (m *SessionManager) Disconnect(ctx context.Context) error {
	m.stopped.Store(true)

	m.connMu.Lock()
	sess := m.session
	m.session = nil
	m.state.Store(int32(StateClosed))
	m.connMu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			slog.WarnContext(ctx, "Error closing gateway session", slog.Any("error", err))
		}
	}
	m.wg.Wait()
	m.state.Store(int32(StateDisconnected))
	slog.InfoContext(ctx, "Gateway session disconnected")
	return nil
}

// inflightSegment tracks one submitted segment awaiting acknowledgment.
type inflightSegment struct {
	seq int32
	ch  chan submitOutcome
}

// Submit issues one outbound message to the gateway, segmenting it and
// submitting each segment as its own submit_sm with a concatenation UDH.
// The provider id of the first segment becomes the message's correlation id.
// A non-zero acknowledgment or a missing acknowledgment within SubmitTimeout
// on any segment is a typed provider error; a timeout is never reported as
// success.
func (m *SessionManager) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	logCtx := logging.ContextWithMessageID(ctx, req.MessageID)
	logCtx = logging.ContextWithPhone(logCtx, req.Phone)

	if err := m.EnsureConnection(logCtx); err != nil {
		return "", err
	}

	segments, requiresUCS2, err := m.segmenter.GetSegments(req.Body)
	if err != nil {
		return "", apperrors.Providerf(apperrors.CodeSubmitRejected, 0, "segmenting message: %v", err)
	}
	coding := data.GSM7BIT
	if requiresUCS2 {
		coding = data.UCS2
	}
	pdus, err := m.buildSegmentPDUs(req.Phone, segments, coding)
	if err != nil {
		return "", apperrors.Providerf(apperrors.CodeSubmitRejected, 0, "building submit pdu: %v", err)
	}

	sent := make([]inflightSegment, 0, len(pdus))
	abandon := func() {
		for _, seg := range sent {
			m.pending.Delete(seg.seq)
		}
	}

	for _, p := range pdus {
		seq := p.GetSequenceNumber()
		ch := make(chan submitOutcome, 1)
		m.pending.Store(seq, ch)

		if err := m.session.Transceiver().Submit(p); err != nil {
			m.pending.Delete(seq)
			abandon()
			if errors.Is(err, gosmpp.ErrWindowsFull) {
				return "", apperrors.Providerf(codes.ErrorCodeGatewayWindowFull, 0, "gateway window full")
			}
			slog.WarnContext(logCtx, "Submit write failed", slog.Any("error", err))
			return "", apperrors.Providerf(apperrors.CodeSubmitRejected, 0, "submit failed: %v", err)
		}
		sent = append(sent, inflightSegment{seq: seq, ch: ch})
	}

	var providerMsgID string
	deadline := time.After(m.cfg.SubmitTimeout)
	for i, seg := range sent {
		segCtx := logging.ContextWithSeqNumber(logCtx, seg.seq)
		select {
		case outcome := <-seg.ch:
			switch {
			case outcome.timedOut:
				abandon()
				return "", apperrors.Providerf(apperrors.CodeSubmitTimeout, 0, "gateway did not acknowledge submit")
			case outcome.closed:
				abandon()
				return "", apperrors.Providerf(apperrors.CodeSubmitRejected, 0, "session closed before acknowledgment")
			case outcome.status != 0:
				abandon()
				return "", apperrors.Providerf(apperrors.CodeSubmitRejected, outcome.status,
					"gateway rejected submit with status 0x%X", outcome.status)
			default:
				if i == 0 {
					providerMsgID = outcome.providerMsgID
				}
				slog.DebugContext(segCtx, "Segment acknowledged",
					slog.String("provider_msg_id", outcome.providerMsgID))
			}
		case <-deadline:
			abandon()
			return "", apperrors.Providerf(apperrors.CodeSubmitTimeout, 0, "gateway did not acknowledge submit")
		case <-ctx.Done():
			abandon()
			return "", ctx.Err()
		}
	}

	slog.InfoContext(logCtx, "Submit acknowledged",
		slog.String("provider_msg_id", providerMsgID),
		slog.Int("segments", len(sent)))
	return providerMsgID, nil
}

// buildSegmentPDUs constructs one submit_sm per segment. Multipart messages
// carry a concatenation UDH sharing an 8-bit reference so the handset can
// reassemble them.
func (m *SessionManager) buildSegmentPDUs(phone string, segments []string, coding data.Encoding) ([]*pdu.SubmitSM, error) {
	udhRef := byte(time.Now().UnixNano() & 0xFF)
	total := len(segments)

	pdus := make([]*pdu.SubmitSM, 0, total)
	for i, content := range segments {
		p, err := m.buildSubmitSM(phone, content, coding)
		if err != nil {
			return nil, err
		}
		if total > 1 {
			p.Message.SetUDH(pdu.UDH{pdu.NewIEConcatMessage(byte(total), byte(i+1), udhRef)})
			p.EsmClass = data.SM_UDH_GSM
		}
		pdus = append(pdus, p)
	}
	return pdus, nil
}

// buildSubmitSM constructs the submit PDU for one segment's content.
func (m *SessionManager) buildSubmitSM(phone, content string, coding data.Encoding) (*pdu.SubmitSM, error) {
	p := pdu.NewSubmitSM().(*pdu.SubmitSM)

	srcAddr := pdu.NewAddress()
	srcAddr.SetTon(m.cfg.SourceAddrTON)
	srcAddr.SetNpi(m.cfg.SourceAddrNPI)
	if err := srcAddr.SetAddress(m.cfg.SourceAddr); err != nil {
		return nil, fmt.Errorf("invalid source address %q: %w", m.cfg.SourceAddr, err)
	}
	p.SourceAddr = srcAddr

	destAddr := pdu.NewAddress()
	destAddr.SetTon(m.cfg.DestAddrTON)
	destAddr.SetNpi(m.cfg.DestAddrNPI)
	if err := destAddr.SetAddress(phone); err != nil {
		return nil, fmt.Errorf("invalid destination address %q: %w", phone, err)
	}
	p.DestAddr = destAddr

	if err := p.Message.SetMessageWithEncoding(content, coding); err != nil {
		return nil, fmt.Errorf("setting message content: %w", err)
	}

	p.ProtocolID = 0
	p.RegisteredDelivery = 1 // always request delivery receipts
	p.ReplaceIfPresentFlag = 0
	p.EsmClass = 0

	return p, nil
}

// resolvePending hands an outcome to the waiting Submit call, if any.
func (m *SessionManager) resolvePending(seq int32, outcome submitOutcome) {
	val, loaded := m.pending.LoadAndDelete(seq)
	if !loaded {
		return
	}
	ch := val.(chan submitOutcome)
	ch <- outcome
}

// =============================================================================
// gosmpp callbacks
// =============================================================================

func (m *SessionManager) handleReceivedPduRequest(p pdu.PDU) (resp pdu.PDU, closeSession bool) {
	ctx := context.Background()

	switch pd := p.(type) {
	case *pdu.DeliverSM:
		// Every inbound deliver_sm goes to the push handler; payloads that
		// are not delivery receipts fail the receipt parse there and are
		// counted, not crashed on.
		raw, err := pd.Message.GetMessage()
		if err != nil {
			slog.WarnContext(ctx, "Failed to decode inbound deliver_sm content", slog.Any("error", err))
			return pd.GetResponse(), false
		}
		m.dispatchPush(raw)
		return pd.GetResponse(), false

	case *pdu.EnquireLink:
		return pd.GetResponse(), false

	case *pdu.Unbind:
		slog.InfoContext(ctx, "Gateway requested unbind")
		m.state.Store(int32(StateClosed))
		return pd.GetResponse(), true

	default:
		slog.WarnContext(ctx, "Unexpected inbound PDU",
			slog.String("cmd", p.GetHeader().CommandID.String()))
		return nil, false
	}
}

// dispatchPush hands an inbound push to the registered handler on its own
// goroutine. The inbound path must never block on an in-flight submit.
func (m *SessionManager) dispatchPush(raw string) {
	m.handlerMu.RLock()
	handler := m.pushHandler
	m.handlerMu.RUnlock()

	if handler == nil {
		slog.Warn("Inbound delivery push with no handler registered")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("PANIC recovered in push handler", slog.Any("panic_info", r))
			}
		}()
		handler(context.Background(), raw)
	}()
}

func (m *SessionManager) handleExpectedPduResponse(response gosmpp.Response) {
	reqPDU := response.OriginalRequest.PDU
	ctx := context.Background()

	switch resp := response.PDU.(type) {
	case *pdu.SubmitSMResp:
		status := resp.GetHeader().CommandStatus
		m.resolvePending(reqPDU.GetSequenceNumber(), submitOutcome{
			providerMsgID: resp.MessageID,
			status:        uint32(status),
		})

	case *pdu.BindResp:
		status := resp.GetHeader().CommandStatus
		if status != 0 {
			slog.ErrorContext(ctx, "Gateway bind rejected", slog.Uint64("status", uint64(status)))
			m.state.Store(int32(StateError))
		} else {
			m.state.Store(int32(StateBound))
		}

	case *pdu.EnquireLinkResp, *pdu.UnbindResp:
		// keepalive / unbind acks need no action

	default:
		slog.WarnContext(ctx, "Unexpected response PDU",
			slog.String("cmd", response.PDU.GetHeader().CommandID.String()))
	}
}

func (m *SessionManager) handleExpiredPduRequest(p pdu.PDU) bool {
	switch p.(type) {
	case *pdu.SubmitSM:
		m.resolvePending(p.GetSequenceNumber(), submitOutcome{timedOut: true})
		return false
	case *pdu.EnquireLink:
		slog.Error("Enquire link expired, connection considered stale")
		return true
	default:
		return false
	}
}

func (m *SessionManager) handleClosedPduRequest(p pdu.PDU) {
	if _, ok := p.(*pdu.SubmitSM); ok {
		m.resolvePending(p.GetSequenceNumber(), submitOutcome{closed: true})
	}
}

func (m *SessionManager) onSubmitError(p pdu.PDU, err error) {
	slog.Warn("Submit error callback",
		slog.Any("error", err),
		slog.String("cmd", p.GetHeader().CommandID.String()))
}

func (m *SessionManager) onReceivingError(err error) {
	slog.Error("Gateway receive error", slog.Any("error", err))
}

func (m *SessionManager) onRebindingError(err error) {
	slog.Error("Gateway rebind error", slog.Any("error", err))
	m.state.Store(int32(StateError))
}

// onClosed flips the state machine and schedules an automatic reconnect
// unless the manager was shut down.
func (m *SessionManager) onClosed(state gosmpp.State) {
	slog.Warn("Gateway session closed", slog.String("final_state", state.String()))
	if m.stopped.Load() {
		m.state.Store(int32(StateClosed))
		return
	}
	m.state.Store(int32(StateDisconnected))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		delay := m.cfg.RebindDelay
		for !m.stopped.Load() {
			time.Sleep(delay)
			if err := m.EnsureConnection(context.Background()); err == nil {
				return
			}
			if delay < time.Minute {
				delay *= 2
			}
		}
	}()
}

// Package mqtt habla con los pastilleros reales por MQTT.
//
// Comandos:  pillsync/<device>/cmd     (publish, QoS 1)
// Estado:    pillsync/<device>/status  (subscribe; anuncio y posición GPS)
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/device"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicPrefix    = "pillsync/"
	statusWildcard = "pillsync/+/status"
	broadcastCmd   = "pillsync/broadcast/cmd"

	DefaultPublishTimeout = 2 * time.Second
	DefaultSeenTTL        = 2 * time.Minute
	DefaultLocateWait     = 10 * time.Second
	announceWait          = 1500 * time.Millisecond
	locatePoll            = 250 * time.Millisecond
)

// Comandos que entiende el firmware.
const (
	CmdRing     = "RING"
	CmdSilence  = "SILENCE"
	CmdLocate   = "CMD_LOCATE"
	CmdAnnounce = "ANNOUNCE"
)

type command struct {
	Command string `json:"command"`
	SlotID  int    `json:"slot_id,omitempty"`
	At      int64  `json:"at"`
}

type statusMessage struct {
	Name    string   `json:"name"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Battery int      `json:"battery"`
}

type seenDevice struct {
	info   device.Info
	loc    *device.Location
	seenAt time.Time
}

type Options struct {
	Broker   string
	ClientID string

	PublishTimeout time.Duration
	SeenTTL        time.Duration
	LocateWait     time.Duration
}

type Gateway struct {
	client paho.Client
	log    logger.Logger

	mu   sync.RWMutex
	seen map[string]seenDevice

	publishTimeout time.Duration
	seenTTL        time.Duration
	locateWait     time.Duration
	now            func() time.Time
}

func newGateway(log logger.Logger, opts Options) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	g := &Gateway{
		log:            log.With(map[string]any{"component": "gateway.mqtt"}),
		seen:           make(map[string]seenDevice),
		publishTimeout: opts.PublishTimeout,
		seenTTL:        opts.SeenTTL,
		locateWait:     opts.LocateWait,
		now:            time.Now,
	}
	if g.publishTimeout <= 0 {
		g.publishTimeout = DefaultPublishTimeout
	}
	if g.seenTTL <= 0 {
		g.seenTTL = DefaultSeenTTL
	}
	if g.locateWait <= 0 {
		g.locateWait = DefaultLocateWait
	}
	return g
}

// Connect abre la conexión y se suscribe a los estados (también al reconectar).
func Connect(log logger.Logger, opts Options) (*Gateway, error) {
	if strings.TrimSpace(opts.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker required")
	}
	g := newGateway(log, opts)

	clientID := opts.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("pillsync-%d", time.Now().Unix())
	}

	co := paho.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(clientID)
	co.SetAutoReconnect(true)
	co.SetConnectTimeout(10 * time.Second)
	co.OnConnect = func(c paho.Client) {
		token := c.Subscribe(statusWildcard, 1, func(_ paho.Client, m paho.Message) {
			g.handleStatus(m.Topic(), m.Payload())
		})
		if token.WaitTimeout(g.publishTimeout) && token.Error() != nil {
			g.log.Error("mqtt subscribe failed", map[string]any{"topic": statusWildcard, "err": token.Error()})
			return
		}
		g.log.Info("mqtt connected", map[string]any{"broker": opts.Broker, "topic": statusWildcard})
	}
	co.OnConnectionLost = func(_ paho.Client, err error) {
		g.log.Warn("mqtt connection lost", map[string]any{"err": err})
	}

	g.client = paho.NewClient(co)
	if token := g.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return g, nil
}

func (g *Gateway) Close() {
	if g.client != nil && g.client.IsConnected() {
		g.client.Disconnect(250)
	}
}

func (g *Gateway) Scan(ctx context.Context, refresh bool) ([]device.Info, error) {
	if refresh {
		if err := g.publish(broadcastCmd, command{Command: CmdAnnounce}); err != nil {
			return nil, err
		}
		t := time.NewTimer(announceWait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	cutoff := g.now().Add(-g.seenTTL)
	g.mu.RLock()
	out := make([]device.Info, 0, len(g.seen))
	for _, d := range g.seen {
		if d.seenAt.After(cutoff) {
			out = append(out, d.info)
		}
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *Gateway) Ring(ctx context.Context, deviceID string, slotID int) error {
	return g.publish(commandTopic(deviceID), command{Command: CmdRing, SlotID: slotID})
}

func (g *Gateway) Silence(ctx context.Context, deviceID string) error {
	return g.publish(commandTopic(deviceID), command{Command: CmdSilence})
}

// Locate usa la última posición reportada. Si no hay, pide una y espera
// hasta locateWait (o ctx) a que llegue.
func (g *Gateway) Locate(ctx context.Context, deviceID string, _ device.Location) (device.Location, error) {
	if loc, ok := g.lastFix(deviceID); ok {
		return loc, nil
	}
	if err := g.publish(commandTopic(deviceID), command{Command: CmdLocate}); err != nil {
		return device.Location{}, err
	}

	deadline := time.NewTimer(g.locateWait)
	defer deadline.Stop()
	tick := time.NewTicker(locatePoll)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return device.Location{}, ctx.Err()
		case <-deadline.C:
			return device.Location{}, device.ErrNoFix
		case <-tick.C:
			if loc, ok := g.lastFix(deviceID); ok {
				return loc, nil
			}
		}
	}
}

func (g *Gateway) lastFix(deviceID string) (device.Location, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.seen[deviceID]
	if !ok || d.loc == nil {
		return device.Location{}, false
	}
	return *d.loc, true
}

func (g *Gateway) handleStatus(topic string, payload []byte) {
	deviceID, ok := deviceFromTopic(topic)
	if !ok {
		return
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		g.log.Warn("mqtt status ignored", map[string]any{"topic": topic, "err": err})
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	d := g.seen[deviceID]
	d.info = device.Info{ID: deviceID, Name: deviceID}
	if msg.Name != "" {
		d.info.Name = msg.Name
	}
	if msg.Lat != nil && msg.Lng != nil {
		d.loc = &device.Location{Lat: *msg.Lat, Lng: *msg.Lng}
	}
	d.seenAt = g.now()
	g.seen[deviceID] = d
}

func (g *Gateway) publish(topic string, cmd command) error {
	if g.client == nil {
		return fmt.Errorf("mqtt client not connected")
	}
	cmd.At = g.now().UnixMilli()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	token := g.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(g.publishTimeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func commandTopic(deviceID string) string {
	return topicPrefix + deviceID + "/cmd"
}

// deviceFromTopic extrae <device> de pillsync/<device>/status.
func deviceFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0]+"/" != topicPrefix || parts[2] != "status" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

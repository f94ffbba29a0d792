package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Movement Movement `yaml:"movement"`
	Chat     Chat     `yaml:"chat"`
	Network  Network  `yaml:"network"`

	FlightAllowed bool `yaml:"flight_allowed"`
	// IdleTimeoutTicks kicks players that send no movement or chat for this
	// long. 0 disables it.
	IdleTimeoutTicks int `yaml:"idle_timeout_ticks"`
}

type Movement struct {
	TeleportTimeoutTicks    int     `yaml:"teleport_timeout_ticks"`
	MoveBudget              float64 `yaml:"move_budget"`
	GlideMoveBudget         float64 `yaml:"glide_move_budget"`
	MaxMovePacketsPerTick   int     `yaml:"max_move_packets_per_tick"`
	WrongMoveThreshold      float64 `yaml:"wrong_move_threshold"`
	FloatingBaseTicks       float64 `yaml:"floating_base_ticks"`
	FloatingThresholdDY     float64 `yaml:"floating_threshold_dy"`
	HorizontalClamp         float64 `yaml:"horizontal_clamp"`
	VerticalClamp           float64 `yaml:"vertical_clamp"`
	SleepingMoveToleranceSq float64 `yaml:"sleeping_move_tolerance_sq"`
}

type Chat struct {
	LastSeenCapacity       int      `yaml:"last_seen_capacity"`
	SignatureCacheCapacity int      `yaml:"signature_cache_capacity"`
	MaxPendingChats        int      `yaml:"max_pending_chats"`
	SpamWindowTicks        int      `yaml:"chat_spam_window_ticks"`
	SpamMax                int      `yaml:"chat_spam_max"`
	MaxLength              int      `yaml:"chat_max_length"`
	MessageExpirySeconds   int      `yaml:"message_expiry_seconds"`
	EnforceSecureChat      bool     `yaml:"enforce_secure_chat"`
	BannedWords            []string `yaml:"banned_words"`
}

type Network struct {
	KeepAliveIntervalMs     int     `yaml:"keepalive_interval_ms"`
	InboundPacketsPerSecond float64 `yaml:"inbound_packets_per_second"`
	InboundBurst            int     `yaml:"inbound_burst"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 20,
		Movement: Movement{
			TeleportTimeoutTicks:    20,
			MoveBudget:              100,
			GlideMoveBudget:         300,
			MaxMovePacketsPerTick:   5,
			WrongMoveThreshold:      0.0625,
			FloatingBaseTicks:       80,
			FloatingThresholdDY:     -0.03125,
			HorizontalClamp:         3.0e7,
			VerticalClamp:           2.0e7,
			SleepingMoveToleranceSq: 1,
		},
		Chat: Chat{
			LastSeenCapacity:       20,
			SignatureCacheCapacity: 128,
			MaxPendingChats:        4096,
			SpamWindowTicks:        200,
			SpamMax:                10,
			MaxLength:              256,
			MessageExpirySeconds:   300,
			EnforceSecureChat:      true,
		},
		Network: Network{
			KeepAliveIntervalMs:     15000,
			InboundPacketsPerSecond: 200,
			InboundBurst:            400,
		},
	}
}

// Load reads a YAML file over Defaults; keys absent from the file keep
// their default value.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0 || t.TickRateHz > 1000:
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	case t.Movement.TeleportTimeoutTicks <= 0:
		return fmt.Errorf("teleport_timeout_ticks must be > 0")
	case t.Movement.MoveBudget <= 0 || t.Movement.GlideMoveBudget <= 0:
		return fmt.Errorf("move budgets must be > 0")
	case t.Movement.MaxMovePacketsPerTick <= 0:
		return fmt.Errorf("max_move_packets_per_tick must be > 0")
	case t.Movement.WrongMoveThreshold <= 0:
		return fmt.Errorf("wrong_move_threshold must be > 0")
	case t.Movement.FloatingBaseTicks <= 0:
		return fmt.Errorf("floating_base_ticks must be > 0")
	case t.Movement.HorizontalClamp <= 0 || t.Movement.VerticalClamp <= 0:
		return fmt.Errorf("coordinate clamps must be > 0")
	case t.Chat.LastSeenCapacity <= 0 || t.Chat.LastSeenCapacity > 64:
		return fmt.Errorf("last_seen_capacity out of range: %d", t.Chat.LastSeenCapacity)
	case t.Chat.SignatureCacheCapacity < t.Chat.LastSeenCapacity+1:
		return fmt.Errorf("signature_cache_capacity must exceed last_seen_capacity")
	case t.Chat.MaxPendingChats <= 0:
		return fmt.Errorf("max_pending_chats must be > 0")
	case t.Chat.SpamWindowTicks < 0 || t.Chat.SpamMax < 0:
		return fmt.Errorf("chat spam limits must be >= 0")
	case t.Chat.MaxLength <= 0:
		return fmt.Errorf("chat_max_length must be > 0")
	case t.Network.KeepAliveIntervalMs <= 0:
		return fmt.Errorf("keepalive_interval_ms must be > 0")
	case t.Network.InboundPacketsPerSecond <= 0 || t.Network.InboundBurst <= 0:
		return fmt.Errorf("inbound rate limits must be > 0")
	case t.IdleTimeoutTicks < 0:
		return fmt.Errorf("idle_timeout_ticks must be >= 0")
	}
	return nil
}

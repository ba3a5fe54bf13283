package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"

	"github.com/redis/go-redis/v9"
)

// Callbacks deliver inbound port traffic into the state machine's event
// loop. A nil callback drops the corresponding traffic.
type Callbacks struct {
	WakeCallback      func() error
	UtteranceCallback func(string) error
	ManualCallback    func(types.MotionIntent) error
	CommandCallback   func(string) error // "explore", "stop", "recover", "shutdown"
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l.WithTag("redis"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetCallbacks installs the inbound handlers. Must be called before
// StartListening.
func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts all Redis listeners after system initialization
// is complete.
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, "voice")
	r.logger.Infof("Subscribed to Redis channel: voice")

	r.wg.Add(1)
	go r.voiceListener(pubsub)

	r.wg.Add(2)
	go r.listCommandListener("robot:manual", r.handleManualCommand)
	go r.listCommandListener("robot:command", r.handleRobotCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// BRPOP with a short timeout to allow periodic context checks
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) voiceListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	r.logger.Infof("Starting voice message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting voice listener")
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Fatalf("Redis connection lost, exiting to allow systemd restart")
			}

			r.logger.Debugf("Received voice message: %s", msg.Payload)

			switch {
			case msg.Payload == "wake":
				if r.callbacks.WakeCallback != nil {
					if err := r.callbacks.WakeCallback(); err != nil {
						r.logger.Warnf("Failed to handle wake event: %v", err)
					}
				}
			case strings.HasPrefix(msg.Payload, "utterance:"):
				if r.callbacks.UtteranceCallback != nil {
					text := strings.TrimPrefix(msg.Payload, "utterance:")
					if err := r.callbacks.UtteranceCallback(text); err != nil {
						r.logger.Warnf("Failed to handle utterance: %v", err)
					}
				}
			default:
				r.logger.Infof("Unhandled voice payload: %s", msg.Payload)
			}
		}
	}
}

// handleManualCommand parses gamepad-bridge commands of the form
// "forward", "forward:0.5", "left:0.3", "stop".
func (r *RedisClient) handleManualCommand(value string) error {
	if r.callbacks.ManualCallback == nil {
		return nil
	}

	intent, err := parseManualCommand(value, time.Now())
	if err != nil {
		r.logger.Infof("Invalid manual command value: %s", value)
		return err
	}
	return r.callbacks.ManualCallback(intent)
}

func parseManualCommand(value string, now time.Time) (types.MotionIntent, error) {
	verb := value
	magnitude := 1.0
	if idx := strings.IndexByte(value, ':'); idx >= 0 {
		verb = value[:idx]
		parsed, err := strconv.ParseFloat(value[idx+1:], 64)
		if err != nil {
			return types.MotionIntent{}, fmt.Errorf("invalid manual magnitude in %q: %w", value, err)
		}
		magnitude = parsed
	}

	var kind types.IntentKind
	switch verb {
	case "forward":
		kind = types.KindForward
	case "backward":
		kind = types.KindBackward
	case "left":
		kind = types.KindTurnLeft
	case "right":
		kind = types.KindTurnRight
	case "stop":
		kind = types.KindStop
	default:
		return types.MotionIntent{}, fmt.Errorf("invalid manual command: %s", value)
	}
	return types.NewIntent(types.SourceManual, kind, magnitude, now), nil
}

func (r *RedisClient) handleRobotCommand(value string) error {
	if r.callbacks.CommandCallback == nil {
		return nil
	}
	switch value {
	case "explore", "stop", "recover", "shutdown":
		return r.callbacks.CommandCallback(value)
	default:
		r.logger.Infof("Invalid robot command value: %s", value)
		return fmt.Errorf("invalid robot command: %s", value)
	}
}

// publishHashSet is a helper that atomically updates a hash field and
// publishes a notification.
func (r *RedisClient) publishHashSet(hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, field, value)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisClient) PublishRobotState(state types.OperatingState) error {
	r.logger.Infof("Publishing robot state: %s", state)
	timestamp := time.Now().Format(time.RFC3339)

	// Atomically set both state and timestamp fields
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, "robot", "state", string(state))
	pipe.HSet(r.ctx, "robot", "state:timestamp", timestamp)
	pipe.Publish(r.ctx, "robot", "state")
	_, err := pipe.Exec(r.ctx)

	if err != nil {
		r.logger.Warnf("Failed to publish robot state: %v", err)
		return err
	}
	r.logger.Debugf("Successfully published robot state with timestamp: %s", timestamp)
	return nil
}

// PublishHazard appends a hazard to the capped event stream and notifies
// subscribers.
func (r *RedisClient) PublishHazard(ev types.HazardEvent) error {
	r.logger.Infof("Publishing hazard: category=%s severity=%s", ev.Category, ev.Severity)

	pipe := r.client.Pipeline()
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: "events:hazards",
		MaxLen: 1000,
		Values: map[string]interface{}{
			"category": string(ev.Category),
			"severity": ev.Severity.String(),
			"detail":   ev.Detail,
			"ts":       ev.Timestamp.Unix(),
		},
	})
	pipe.Publish(r.ctx, "robot", "hazard")
	_, err := pipe.Exec(r.ctx)
	if err != nil {
		r.logger.Warnf("Failed to publish hazard: %v", err)
		return err
	}
	return nil
}

// PublishActuationFault reports a drive fault into the hazard stream.
func (r *RedisClient) PublishActuationFault(op, detail string) error {
	r.logger.Infof("Publishing actuation fault: op=%s", op)

	pipe := r.client.Pipeline()
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: "events:hazards",
		MaxLen: 1000,
		Values: map[string]interface{}{
			"category": "actuation",
			"severity": "critical",
			"op":       op,
			"detail":   detail,
			"ts":       time.Now().Unix(),
		},
	})
	pipe.Publish(r.ctx, "robot", "fault")
	_, err := pipe.Exec(r.ctx)
	if err != nil {
		r.logger.Warnf("Failed to publish actuation fault: %v", err)
		return err
	}
	return nil
}

// PublishMotionDecision records an arbitrated decision in the motion
// stream for observability.
func (r *RedisClient) PublishMotionDecision(intent types.MotionIntent) error {
	err := r.client.XAdd(r.ctx, &redis.XAddArgs{
		Stream: "events:motion",
		MaxLen: 1000,
		Values: map[string]interface{}{
			"source":    intent.Source.String(),
			"kind":      intent.Kind.String(),
			"magnitude": intent.Magnitude,
			"ts":        intent.IssuedAt.UnixMilli(),
		},
	}).Err()
	if err != nil {
		r.logger.Debugf("Failed to publish motion decision: %v", err)
		return err
	}
	return nil
}

// Say queues a response for the TTS daemon, fire and forget.
func (r *RedisClient) Say(text string) error {
	if err := r.client.LPush(r.ctx, "robot:speech", text).Err(); err != nil {
		r.logger.Warnf("Failed to queue speech: %v", err)
		return err
	}
	r.logger.Debugf("Queued speech: %s", text)
	return nil
}

// SetTelemetry mirrors environmental readings into the robot hash for
// dashboards.
func (r *RedisClient) SetTelemetry(snap types.SensorSnapshot) error {
	fields := make(map[string]interface{})
	for id, reading := range snap.Readings {
		if !reading.Valid {
			continue
		}
		fields[string(id)] = fmt.Sprintf("%.2f", reading.Value)
	}
	if len(fields) == 0 {
		return nil
	}

	if err := r.client.HSet(r.ctx, "robot", fields).Err(); err != nil {
		r.logger.Debugf("Failed to set telemetry: %v", err)
		return err
	}
	return nil
}

// PublishMissionReport publishes the exploration summary.
func (r *RedisClient) PublishMissionReport(report string) error {
	if err := r.publishHashSet("robot", "mission:report", report, "robot", "mission:report"); err != nil {
		r.logger.Warnf("Failed to publish mission report: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	// Wait for all goroutines to finish with a timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Infof("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}

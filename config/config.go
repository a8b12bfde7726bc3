package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Map       MapConfig       `yaml:"map"`
	Planner   PlannerConfig   `yaml:"planner"`
	Safety    SafetyConfig    `yaml:"safety"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Battery   BatteryConfig   `yaml:"battery"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	TelemetryTopic      string        `yaml:"telemetry_topic"`
	CommandTopicPrefix  string        `yaml:"command_topic_prefix"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	OutboxBatchSize     int           `yaml:"outbox_batch_size"`
	OutboxMaxRetries    int           `yaml:"outbox_max_retries"` // 0 retries forever
	NodeID              string        `yaml:"node_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// MapConfig describes the warehouse grid: dimensions, connectivity,
// statically blocked regions and named traffic zones.
type MapConfig struct {
	Width    int        `yaml:"width"`
	Height   int        `yaml:"height"`
	CellSize float64    `yaml:"cell_size"` // meters per cell edge
	Diagonal bool       `yaml:"diagonal"`  // 8-connected when true
	Blocked  []RectSpec `yaml:"blocked"`
	Zones    []ZoneSpec `yaml:"zones"`
}

type RectSpec struct {
	X0 int `yaml:"x0"`
	Y0 int `yaml:"y0"`
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
}

type ZoneSpec struct {
	Name string   `yaml:"name"`
	Cap  int      `yaml:"cap"` // 0 means the fleet-wide default applies
	Rect RectSpec `yaml:"rect"`
}

type PlannerConfig struct {
	CongestionWeight float64 `yaml:"congestion_weight"` // per active reservation on a cell
	RobotSpeed       float64 `yaml:"robot_speed"`       // m/s, used to timestamp paths
}

type SafetyConfig struct {
	Separation       float64       `yaml:"separation"`        // minimum robot-robot distance, meters
	HumanMargin      float64       `yaml:"human_margin"`      // extra clearance around humans, meters
	SampleResolution time.Duration `yaml:"sample_resolution"` // temporal sampling step for collision checks
	RecheckInterval  time.Duration `yaml:"recheck_interval"`  // mid-execution safety recheck period
	ObstacleTTL      time.Duration `yaml:"obstacle_ttl"`      // staleness window for unrefreshed obstacles
}

type FleetConfig struct {
	DistanceWeight    float64       `yaml:"distance_weight"`
	BatteryWeight     float64       `yaml:"battery_weight"`
	UtilizationWeight float64       `yaml:"utilization_weight"`
	ZoneCap           int           `yaml:"zone_cap"` // default concurrent robots per zone
	MissionTimeout    time.Duration `yaml:"mission_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
}

type BatteryConfig struct {
	LowPercent       float64       `yaml:"low_percent"`
	CriticalPercent  float64       `yaml:"critical_percent"`
	ResumePercent    float64       `yaml:"resume_percent"` // charge level at which a robot leaves the station
	ChargePriority   int           `yaml:"charge_priority"`
	EvaluateInterval time.Duration `yaml:"evaluate_interval"`
	Stations         []StationSpec `yaml:"stations"`
}

type StationSpec struct {
	ID       string `yaml:"id"`
	X        int    `yaml:"x"`
	Y        int    `yaml:"y"`
	Capacity int    `yaml:"capacity"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "fleetcore.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "fleetcore",
				User:     "fleetcore",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8084,
		},
		Messaging: MessagingConfig{
			Backend: "mqtt",
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "fleetcore",
			},
			TelemetryTopic:      "fleet/telemetry",
			CommandTopicPrefix:  "fleet/commands",
			EventsTopic:         "fleet/events",
			OutboxDrainInterval: 5 * time.Second,
			OutboxBatchSize:     50,
			OutboxMaxRetries:    20,
			NodeID:              "fleetcore",
		},
		Map: MapConfig{
			Width:    64,
			Height:   64,
			CellSize: 0.5,
			Diagonal: false,
		},
		Planner: PlannerConfig{
			CongestionWeight: 0.5,
			RobotSpeed:       1.0,
		},
		Safety: SafetyConfig{
			Separation:       0.3,
			HumanMargin:      0.5,
			SampleResolution: 250 * time.Millisecond,
			RecheckInterval:  200 * time.Millisecond,
			ObstacleTTL:      30 * time.Second,
		},
		Fleet: FleetConfig{
			DistanceWeight:    1.0,
			BatteryWeight:     0.5,
			UtilizationWeight: 0.25,
			ZoneCap:           3,
			MissionTimeout:    2 * time.Hour,
			MaxRetries:        3,
		},
		Battery: BatteryConfig{
			LowPercent:       20,
			CriticalPercent:  10,
			ResumePercent:    80,
			ChargePriority:   100,
			EvaluateInterval: time.Second,
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }

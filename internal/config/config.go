package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "hydra"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("market.name", "binanceusdm")
	v.SetDefault("market.symbol", "BTC/USDT:USDT")
	v.SetDefault("market.use_sandbox", false)
	v.SetDefault("market.retry.max_attempts", 5)
	v.SetDefault("market.retry.min_delay", "500ms")
	v.SetDefault("market.retry.max_delay", "5s")

	v.SetDefault("consensus.threshold", 0.6)
	v.SetDefault("consensus.min_agreement", 2)
	v.SetDefault("consensus.signal_timeout", "2s")

	v.SetDefault("allocator.win_rate_weight", 0.3)
	v.SetDefault("allocator.sharpe_weight", 0.3)
	v.SetDefault("allocator.drawdown_weight", 0.4)

	v.SetDefault("risk.profile", "moderate")

	v.SetDefault("stress.top_n", 5)

	v.SetDefault("alert.retention", 500)

	v.SetDefault("execution.simulation", true)
	v.SetDefault("execution.slippage", 0.01)
	v.SetDefault("execution.time_in_force", "GTC")
	v.SetDefault("execution.initial_equity", 100000.0)

	v.SetDefault("report.enabled", false)
	v.SetDefault("report.base_url", "https://api.openai.com/v1")
	v.SetDefault("report.model", "gpt-4.1")
	v.SetDefault("report.timeout", "15s")

	v.SetDefault("database.path", "data/hydra_core.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("scheduler.decision_interval", "5s")
	v.SetDefault("scheduler.monitor_interval", "30s")
	v.SetDefault("scheduler.rebalance_interval", "1h")
	v.SetDefault("scheduler.stress_interval", "15m")
	v.SetDefault("scheduler.monitor_port", 8090)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

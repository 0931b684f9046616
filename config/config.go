package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
	}
	Game struct {
		MinBet      int64 // 台桌最低下注额
		TurnSeconds int   // 每回合行动倒计时（秒）
		DealPauseMs int   // 发公共牌前的演出停顿（毫秒），不挂起任何游戏逻辑
	}
}

var C Config

func Load() {
	viper.SetConfigFile("config/config.yaml")

	// 未配置时的兜底值
	viper.SetDefault("game.minbet", 100)
	viper.SetDefault("game.turnseconds", 30)
	viper.SetDefault("game.dealpausems", 800)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}
	if err := viper.Unmarshal(&C); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}
}

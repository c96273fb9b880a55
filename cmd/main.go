package main

import (
	"log"
	"os"

	"chatrelay/internal/config"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd 不带子命令时等同于 serve
var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "在线状态感知的消息与好友请求中继服务",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Init(configFile)
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "配置文件路径 (YAML)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("启动失败: %v", err)
		os.Exit(1)
	}
}

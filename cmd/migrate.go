package main

import (
	"log"

	"chatrelay/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "执行数据库迁移后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.InitDB()
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		log.Println("数据库迁移完成")
		return nil
	},
}

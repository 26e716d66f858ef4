package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモード。
	CommandServe Command = "serve"
	// CommandWorker は整合性ジョブを定期実行するワーカーモード。
	CommandWorker Command = "worker"
	// CommandReconcile は整合性ジョブを1回だけ実行して終了する。
	CommandReconcile Command = "reconcile"
	// CommandMigrate はデータベースマイグレーション。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はdistroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandReconcile, CommandMigrate, CommandHealthcheck:
		return cmd
	default:
		return CommandServe
	}
}

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"
	MigrateDown    MigrateAction = "down"
	MigrateVersion MigrateAction = "version"
)

// MigrateArgs はmigrateサブコマンドの引数。
type MigrateArgs struct {
	Action MigrateAction
	Steps  int // downのみ
}

// ParseMigrateArgs は "migrate" 以降の引数を解析する。
//
//	migrate            すべて適用
//	migrate up         すべて適用
//	migrate down [N]   N件戻す（既定1）
//	migrate version    適用済みバージョンを表示
func ParseMigrateArgs(args []string) (MigrateArgs, error) {
	if len(args) == 0 {
		return MigrateArgs{Action: MigrateUp}, nil
	}

	switch action := MigrateAction(args[0]); action {
	case MigrateUp, MigrateVersion:
		if len(args) > 1 {
			return MigrateArgs{}, fmt.Errorf("migrate %s takes no arguments", action)
		}
		return MigrateArgs{Action: action}, nil
	case MigrateDown:
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return MigrateArgs{}, fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return MigrateArgs{Action: MigrateDown, Steps: steps}, nil
	default:
		return MigrateArgs{}, fmt.Errorf("unknown migrate action %q", args[0])
	}
}

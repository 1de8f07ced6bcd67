// Package cli 实现 casectl 命令
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"casebook-server/internal/client"
)

// app 命令共享的状态，由全局参数和配置目录决定
type app struct {
	home    string
	server  string
	offline bool
	store   *Store
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "casectl",
		Short: "Casebook - 病例采集与医疗问答客户端",
		Long: `Casebook CLI 客户端

与小程序使用同一套接口：登录、分步填写病例草稿、提交和管理病例、医疗问答。
加上 --offline 后草稿和病例只保存在本地，不需要登录。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&a.server, "server", "s", "", "服务器地址 (默认: "+DefaultServerURL+")")
	rootCmd.PersistentFlags().StringVar(&a.home, "home", "", "配置目录 (默认: ~/.casebook)")
	rootCmd.PersistentFlags().BoolVar(&a.offline, "offline", false, "离线模式，草稿和病例保存在本地")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
		newDraftCmd(a),
		newCasesCmd(a),
		newChatCmd(a),
	)
	return rootCmd
}

// Execute 执行根命令
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func (a *app) init() error {
	dir := a.home
	if dir == "" {
		var err error
		if dir, err = DefaultDir(); err != nil {
			return err
		}
	}

	store, err := OpenStore(dir)
	if err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}
	a.store = store

	// 如果指定了服务器地址，更新配置
	if a.server != "" {
		if err := store.SetServerURL(a.server); err != nil {
			return err
		}
	}
	return nil
}

// client 创建带当前 Token 的 API 客户端
func (a *app) client() *client.Client {
	cfg := a.store.Config()
	return client.NewClient(cfg.Server.URL, cfg.Auth.Token)
}

// printJSON 以缩进格式输出
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"casebook-server/internal/client"
	"casebook-server/internal/model"
	"casebook-server/internal/service"
)

func newLoginCmd(a *app) *cobra.Command {
	var name, avatar string

	cmd := &cobra.Command{
		Use:   "login <code>",
		Short: "使用微信登录码登录",
		Long: `使用 wx.login 得到的登录码登录，成功后保存 Token。

开发环境下可以使用测试登录码，例如 'casectl login test_alice'。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &service.LoginRequest{Code: args[0]}
			if name != "" || avatar != "" {
				req.UserInfo = &service.ProfileHint{NickName: name, AvatarURL: avatar}
			}

			res, err := a.client().Login(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("登录失败: %w", err)
			}

			if err := a.store.SaveAuth(AuthConfig{
				Token:  res.Token,
				UserID: res.UserInfo.ID,
				OpenID: res.UserInfo.OpenID,
				Name:   res.UserInfo.Name,
			}); err != nil {
				return fmt.Errorf("保存登录信息失败: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ 登录成功，欢迎 %s\n", res.UserInfo.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "昵称，仅在首次登录时使用")
	cmd.Flags().StringVar(&avatar, "avatar", "", "头像地址")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "登出并清除本地凭证",
		Long: `登出当前账号，服务端作废 Token 并清除本地保存的登录信息。

登出后需要重新运行 'casectl login' 才能使用在线功能。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			// 检查是否已登录
			if !a.store.IsLoggedIn() {
				fmt.Fprintln(out, "当前未登录")
				return nil
			}

			// 服务端不可用或 Token 已失效时仍然清除本地凭证
			if err := a.client().Logout(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ 服务端登出失败: %v\n", err)
			}

			if err := a.store.ClearAuth(); err != nil {
				return fmt.Errorf("清除凭证失败: %w", err)
			}
			fmt.Fprintln(out, "✓ 已登出并清除本地凭证")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "显示当前状态",
		Long: `显示当前登录状态和配置信息。

包括：
- 服务器地址及是否可以访问
- 登录状态
- 本地草稿和病例文件位置`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg := a.store.Config()

			fmt.Fprintln(out, "╔════════════════════════════════════════════════╗")
			fmt.Fprintln(out, "║              Casebook 状态信息                  ║")
			fmt.Fprintln(out, "╠════════════════════════════════════════════════╣")

			// 服务器地址
			if err := a.client().Health(cmd.Context()); err != nil {
				fmt.Fprintf(out, "║  服务器: %s (✗ 无法访问)\n", cfg.Server.URL)
			} else {
				fmt.Fprintf(out, "║  服务器: %s (✓ 正常)\n", cfg.Server.URL)
			}

			// 登录状态
			if a.store.IsLoggedIn() {
				fmt.Fprintln(out, "║  登录状态: ✓ 已登录")
				fmt.Fprintf(out, "║  用户: %s (ID %d)\n", cfg.Auth.Name, cfg.Auth.UserID)
			} else {
				fmt.Fprintln(out, "║  登录状态: ✗ 未登录")
				fmt.Fprintln(out, "║  请运行 'casectl login <code>' 完成登录")
			}

			fmt.Fprintf(out, "║  离线草稿: %s\n", a.store.DraftPath())
			fmt.Fprintf(out, "║  离线病例: %s\n", a.store.CasesPath())
			fmt.Fprintln(out, "╚════════════════════════════════════════════════╝")
			return nil
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "查看或修改个人资料",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := a.client().Profile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	cmd.AddCommand(newProfileUpdateCmd(a))
	return cmd
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var name, gender, age, phone string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "修改个人资料，只提交指定的字段",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			req := &service.UpdateProfileRequest{}
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("gender") {
				req.Gender = &gender
			}
			if flags.Changed("phone") {
				req.Phone = &phone
			}
			if flags.Changed("age") {
				var v model.OptionalInt
				if err := v.UnmarshalJSON([]byte(strconv.Quote(strings.TrimSpace(age)))); err != nil || !v.Valid {
					return fmt.Errorf("年龄格式错误: %q", age)
				}
				req.Age = &v
			}
			if req.Name == nil && req.Gender == nil && req.Age == nil && req.Phone == nil {
				return errors.New("没有要修改的字段")
			}

			user, err := a.client().UpdateProfile(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ 用户信息更新成功")
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "姓名")
	cmd.Flags().StringVar(&gender, "gender", "", "性别")
	cmd.Flags().StringVar(&age, "age", "", "年龄")
	cmd.Flags().StringVar(&phone, "phone", "", "手机号，空串表示清除")
	return cmd
}

// describe 把服务端的多条校验问题逐条展开
func describe(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Problems) > 1 {
		return fmt.Errorf("%s:\n  - %s", apiErr.Message, strings.Join(apiErr.Problems, "\n  - "))
	}
	return err
}

package auth

import "time"

// View は遷移先のページ。
type View string

const (
	// ViewLogin はログイン/サインアップページ。
	ViewLogin View = "login.html"
	// ViewProfile はプロフィールページ。
	ViewProfile View = "profile.html"
)

// FormSignup はリセット対象のサインアップフォーム名。
const FormSignup = "signup"

// Navigation は画面遷移の指示。Delayは表示上の待ち時間。
type Navigation struct {
	View      View
	Delay     time.Duration
	ResetForm string // 遷移前にリセットするフォーム（空なら何もしない）
}

// Outcome は利用者向けの結果。Messageはそのまま表示できる文言。
type Outcome struct {
	Success bool
	Message string
	Next    *Navigation
}

// Navigator は画面遷移の副作用を受け取る。
type Navigator interface {
	Navigate(nav Navigation)
}

// NavigatorFunc は関数をNavigatorとして扱うアダプタ。
type NavigatorFunc func(nav Navigation)

// Navigate はNavigatorインターフェースを実装する。
func (f NavigatorFunc) Navigate(nav Navigation) {
	f(nav)
}

// RecordingNavigator は最後の遷移指示を保持する。HTTPレスポンスへの反映に使う。
type RecordingNavigator struct {
	last *Navigation
}

// Navigate は遷移指示を記録する。
func (r *RecordingNavigator) Navigate(nav Navigation) {
	r.last = &nav
}

// Last は最後に記録した遷移指示を返す。未記録の場合はnil。
func (r *RecordingNavigator) Last() *Navigation {
	return r.last
}

func failure(message string) Outcome {
	return Outcome{Success: false, Message: message}
}

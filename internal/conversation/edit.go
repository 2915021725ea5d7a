package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/sale"
	"github.com/hitoshi/adledger/internal/security"
	"github.com/hitoshi/adledger/internal/view"
)

// 売上編集のステップ。編集する項目ごとに1つ。
const (
	StateEditBuyer   State = "edit_buyer"
	StateEditCost    State = "edit_cost"
	StateEditPercent State = "edit_manager_percent"
	StateEditFormat  State = "edit_format"
	StateEditStatus  State = "edit_payment_status"
)

var editStates = map[model.SaleField]State{
	model.FieldBuyer:   StateEditBuyer,
	model.FieldCost:    StateEditCost,
	model.FieldPercent: StateEditPercent,
	model.FieldFormat:  StateEditFormat,
	model.FieldStatus:  StateEditStatus,
}

// EditDraft は編集対象。
type EditDraft struct {
	SaleID int64           `json:"sale_id"`
	Field  model.SaleField `json:"field"`
}

// SaleEditor は売上の編集とカード表示。
type SaleEditor interface {
	Edit(ctx context.Context, userID, saleID int64, change sale.Change) (*sale.EditResult, error)
	Card(ctx context.Context, userID, saleID int64) (*model.Sale, *model.User, bool, error)
}

// EditFlowDeps はEditFlowの依存をまとめたもの。
type EditFlowDeps struct {
	Store     Store
	Editor    SaleEditor
	View      *view.Renderer
	Sanitizer security.TextSanitizer
	Logger    *slog.Logger
}

// EditFlow は売上1項目の編集の対話。
type EditFlow struct {
	EditFlowDeps
}

// NewEditFlow はEditFlowを生成する。
func NewEditFlow(d EditFlowDeps) *EditFlow {
	return &EditFlow{EditFlowDeps: d}
}

// Begin は売上の項目の編集を始める。書き込み権限がなければ始めない。
func (f *EditFlow) Begin(ctx context.Context, user *model.User, saleID int64, field model.SaleField) ([]Reply, error) {
	state, ok := editStates[field]
	if !ok {
		return nil, fmt.Errorf("編集できない項目です: %q", field)
	}
	if _, _, _, err := f.Editor.Card(ctx, user.ID, saleID); err != nil {
		return abort(f.View, err)
	}

	sess := NewSession(user.ID, FlowEditSale, state)
	if err := sess.Encode(EditDraft{SaleID: saleID, Field: field}); err != nil {
		return nil, err
	}
	if err := f.Store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return send(f.View.FieldPrompt(field)), nil
}

// Handle は新しい値の入力を受け付ける。取り消した場合は変更せずにカードへ戻る。
func (f *EditFlow) Handle(ctx context.Context, user *model.User, sess *Session, ev Event) ([]Reply, error) {
	var d EditDraft
	if err := sess.Decode(&d); err != nil {
		return nil, err
	}
	if editStates[d.Field] != sess.State {
		return nil, fmt.Errorf("編集ステップと項目が一致しません: %q, %q", sess.State, d.Field)
	}

	switch e := ev.(type) {
	case Cancel:
		if err := f.Store.Clear(ctx, user.ID); err != nil {
			return nil, err
		}
		return f.backToCard(ctx, user, d.SaleID, "cancelled")

	case Text:
		change, err := ParseChange(f.Sanitizer, d.Field, e.Text)
		if err != nil {
			return reprompt(f.View, err, f.View.FieldPrompt(d.Field).Reply)
		}
		res, err := f.Editor.Edit(ctx, user.ID, d.SaleID, change)
		if model.IsKind(err, model.KindValidation) {
			return reprompt(f.View, err, f.View.FieldPrompt(d.Field).Reply)
		}
		if err != nil {
			if clearErr := f.Store.Clear(ctx, user.ID); clearErr != nil {
				return nil, clearErr
			}
			return abort(f.View, err)
		}
		if err := f.Store.Clear(ctx, user.ID); err != nil {
			return nil, err
		}
		f.Logger.Info("売上を編集しました",
			slog.Int64("sale_id", d.SaleID),
			slog.String("field", string(d.Field)),
		)

		replies, err := f.backToCard(ctx, user, d.SaleID, "edit_saved")
		if err != nil {
			return nil, err
		}
		if res.MirrorErr != nil {
			replies = append(send(f.View.Error(res.MirrorErr)), replies...)
		}
		return replies, nil
	}
	return nil, nil
}

func (f *EditFlow) backToCard(ctx context.Context, user *model.User, saleID int64, key string) ([]Reply, error) {
	s, writer, canDelete, err := f.Editor.Card(ctx, user.ID, saleID)
	if err != nil {
		return abort(f.View, err)
	}
	return send(f.View.WithMenu(key), f.View.SaleCard(s, writer, canDelete)), nil
}

// abort は権限不足や売上の消失を利用者向けの文面にして対話を終える。
func abort(v *view.Renderer, err error) ([]Reply, error) {
	switch model.KindOf(err) {
	case model.KindAuthorization, model.KindNotFound, model.KindConflict:
		msg := v.Error(err)
		msg.Reply = v.MainMenu()
		return []Reply{{Message: msg}}, nil
	}
	return nil, err
}

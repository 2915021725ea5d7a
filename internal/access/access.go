// Package access はチャンネル単位の書き込み・削除権限を判定する。
package access

import (
	"context"
	"fmt"

	"github.com/hitoshi/adledger/internal/model"
	"github.com/hitoshi/adledger/internal/repository"
)

// CanWrite はユーザーがチャンネルに売上を記録できるかどうかを返す。
// 作成者は書き込み権限の行がなくても常に許可される。
func CanWrite(userID int64, ch *model.Channel, isWriter bool) bool {
	if ch == nil {
		return false
	}
	return ch.CreatorID == userID || isWriter
}

// CanDelete はユーザーが売上を削除できるかどうかを返す。
// チャンネル作成者か、売上を記録した本人のみ許可される。
func CanDelete(userID int64, sale *model.Sale, ch *model.Channel) bool {
	if sale == nil || ch == nil {
		return false
	}
	return ch.CreatorID == userID || sale.WriterID == userID
}

// Gate はリポジトリを参照して権限を判定する。
// 権限不足は KindAuthorization、参照先の消失は KindNotFound のAppErrorで返す。
type Gate struct {
	channels repository.ChannelRepository
	sales    repository.SaleRepository
}

// NewGate はGateの新しいインスタンスを生成する。
func NewGate(channels repository.ChannelRepository, sales repository.SaleRepository) *Gate {
	return &Gate{channels: channels, sales: sales}
}

// RequireWrite は書き込み権限を確認し、対象チャンネルを返す。
func (g *Gate) RequireWrite(ctx context.Context, userID, channelID int64) (*model.Channel, error) {
	ch, err := g.channels.FindByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	if ch == nil {
		return nil, model.NewChannelNotFoundError(channelID)
	}
	if ch.CreatorID == userID {
		return ch, nil
	}

	isWriter, err := g.channels.IsWriter(ctx, userID, channelID)
	if err != nil {
		return nil, fmt.Errorf("書き込み権限の確認に失敗しました: %w", err)
	}
	if !CanWrite(userID, ch, isWriter) {
		return nil, model.NewNoWriteAccessError(userID, channelID)
	}
	return ch, nil
}

// RequireSaleWrite は売上を取得し、そのチャンネルへの書き込み権限を確認する。
func (g *Gate) RequireSaleWrite(ctx context.Context, userID, saleID int64) (*model.Sale, *model.Channel, error) {
	sale, err := g.findSale(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	ch, err := g.RequireWrite(ctx, userID, sale.ChannelID)
	if err != nil {
		return nil, nil, err
	}
	return sale, ch, nil
}

// RequireDelete は売上を取得し、削除権限を確認する。
func (g *Gate) RequireDelete(ctx context.Context, userID, saleID int64) (*model.Sale, *model.Channel, error) {
	sale, err := g.findSale(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	ch, err := g.channels.FindByID(ctx, sale.ChannelID)
	if err != nil {
		return nil, nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	if ch == nil {
		return nil, nil, model.NewChannelNotFoundError(sale.ChannelID)
	}
	if !CanDelete(userID, sale, ch) {
		return nil, nil, model.NewNoDeleteAccessError(userID, saleID)
	}
	return sale, ch, nil
}

func (g *Gate) findSale(ctx context.Context, saleID int64) (*model.Sale, error) {
	sale, err := g.sales.FindByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("売上の取得に失敗しました: %w", err)
	}
	if sale == nil {
		return nil, model.NewSaleNotFoundError(saleID)
	}
	return sale, nil
}

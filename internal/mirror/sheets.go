package mirror

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetURLPrefix = "https://docs.google.com/spreadsheets/d/"

// SheetsStore はGoogle Sheets API v4とDrive API v3を使ったStore。
// 作成した表はリンクを知っている全員に閲覧のみで共有する。
type SheetsStore struct {
	sheets *sheets.Service
	drive  *drive.Service

	mu       sync.Mutex
	sheetIDs map[string]int64 // スプレッドシートID → 先頭シートのID
}

// NewSheetsStore はサービスアカウントの認証情報ファイルからSheetsStoreを生成する。
func NewSheetsStore(ctx context.Context, credentialsFile string) (*SheetsStore, error) {
	opts := []option.ClientOption{
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope, drive.DriveScope),
	}
	sheetsSrv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Sheetsクライアントの初期化に失敗しました: %w", err)
	}
	driveSrv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Driveクライアントの初期化に失敗しました: %w", err)
	}
	return &SheetsStore{
		sheets:   sheetsSrv,
		drive:    driveSrv,
		sheetIDs: make(map[string]int64),
	}, nil
}

// CreateTable はスプレッドシートを作成してヘッダー行を書き込み、閲覧共有を設定する。
func (s *SheetsStore) CreateTable(ctx context.Context, name string, header []string) (string, error) {
	created, err := s.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: name},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("スプレッドシートの作成に失敗しました: %w", err)
	}
	id := created.SpreadsheetId
	if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
		s.mu.Lock()
		s.sheetIDs[id] = created.Sheets[0].Properties.SheetId
		s.mu.Unlock()
	}

	_, err = s.sheets.Spreadsheets.Values.Update(id, "A1", &sheets.ValueRange{
		Values: [][]interface{}{toRow(header)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return id, fmt.Errorf("ヘッダー行の書き込みに失敗しました: %w", err)
	}

	_, err = s.drive.Permissions.Create(id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return id, fmt.Errorf("共有設定に失敗しました: %w", err)
	}
	return id, nil
}

// AppendRow はデータ行を position の位置に挿入する。
func (s *SheetsStore) AppendRow(ctx context.Context, tableID string, values []string, position int) (string, error) {
	sheetID, err := s.sheetID(ctx, tableID)
	if err != nil {
		return "", err
	}
	// ヘッダーが0行目なので、データのposition番目は0始まりでposition行目
	_, err = s.sheets.Spreadsheets.BatchUpdate(tableID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range:             rowRange(sheetID, position),
				InheritFromBefore: position > 1,
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("行の挿入に失敗しました: %w", err)
	}

	_, err = s.sheets.Spreadsheets.Values.Update(tableID, fmt.Sprintf("A%d", position+1), &sheets.ValueRange{
		Values: [][]interface{}{toRow(values)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("行の書き込みに失敗しました: %w", err)
	}
	return s.TableURL(tableID), nil
}

// UpdateCell は1セルを書き換える。
func (s *SheetsStore) UpdateCell(ctx context.Context, tableID string, position, column int, value string) error {
	_, err := s.sheets.Spreadsheets.Values.Update(tableID, CellRef(position, column), &sheets.ValueRange{
		Values: [][]interface{}{{value}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("セルの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteRow はデータ行を削除する。
func (s *SheetsStore) DeleteRow(ctx context.Context, tableID string, position int) error {
	sheetID, err := s.sheetID(ctx, tableID)
	if err != nil {
		return err
	}
	_, err = s.sheets.Spreadsheets.BatchUpdate(tableID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{Range: rowRange(sheetID, position)},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("行の削除に失敗しました: %w", err)
	}
	return nil
}

// TableURL はスプレッドシートのURLを返す。
func (s *SheetsStore) TableURL(tableID string) string {
	return spreadsheetURLPrefix + tableID
}

func (s *SheetsStore) sheetID(ctx context.Context, tableID string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[tableID]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	ss, err := s.sheets.Spreadsheets.Get(tableID).Fields("sheets.properties.sheetId").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("スプレッドシートの取得に失敗しました: %w", err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return 0, fmt.Errorf("シートが存在しません: %s", tableID)
	}
	id = ss.Sheets[0].Properties.SheetId

	s.mu.Lock()
	s.sheetIDs[tableID] = id
	s.mu.Unlock()
	return id, nil
}

func rowRange(sheetID int64, position int) *sheets.DimensionRange {
	return &sheets.DimensionRange{
		SheetId:         sheetID,
		Dimension:       "ROWS",
		StartIndex:      int64(position),
		EndIndex:        int64(position + 1),
		ForceSendFields: []string{"SheetId"},
	}
}

func toRow(values []string) []interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// CellRef はデータ行 position と列 column（ともに1始まり）をA1形式に変換する。
func CellRef(position, column int) string {
	col := ""
	for n := column; n > 0; n = (n - 1) / 26 {
		col = string(rune('A'+(n-1)%26)) + col
	}
	return fmt.Sprintf("%s%d", col, position+1)
}

var _ Store = (*SheetsStore)(nil)

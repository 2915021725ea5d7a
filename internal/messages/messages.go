// Package messages はボットの文面カタログを提供する。
// 文面は埋め込みのYAMLから読み込み、{name} 形式のプレースホルダーを置換する。
package messages

import (
	_ "embed"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/adledger/internal/model"
)

//go:embed messages.yaml
var defaultCatalog []byte

// Catalog は文面の集合。
type Catalog struct {
	Months   []string          `yaml:"months"`
	Weekdays []string          `yaml:"weekdays"`
	Texts    map[string]string `yaml:"texts"`

	printer *message.Printer
}

// Load はYAMLから文面を読み込む。
func Load(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("文面の読み込みに失敗しました: %w", err)
	}
	if len(c.Months) != 12 {
		return nil, fmt.Errorf("月名は12個必要です: %d", len(c.Months))
	}
	if len(c.Weekdays) != 7 {
		return nil, fmt.Errorf("曜日名は7個必要です: %d", len(c.Weekdays))
	}
	c.printer = message.NewPrinter(language.Russian)
	return c, nil
}

// Default は埋め込みの文面を返す。埋め込みデータが壊れている場合はpanicする。
func Default() *Catalog {
	c, err := Load(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Get は文面を返す。未定義のキーはキーそのものを返す。
func (c *Catalog) Get(key string) string {
	if s, ok := c.Texts[key]; ok {
		return s
	}
	return key
}

// Format は文面のプレースホルダーを置換する。kv はキーと値を交互に並べる。
// 値はHTMLエスケープされる。
func (c *Catalog) Format(key string, kv ...string) string {
	return c.replace(key, true, kv)
}

// FormatRaw はFormatと同じだが値をエスケープしない。組み立て済みのHTMLを埋め込むときに使う。
func (c *Catalog) FormatRaw(key string, kv ...string) string {
	return c.replace(key, false, kv)
}

func (c *Catalog) replace(key string, escape bool, kv []string) string {
	if len(kv)%2 != 0 {
		kv = append(kv, "")
	}
	pairs := make([]string, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		v := kv[i+1]
		if escape {
			v = html.EscapeString(v)
		}
		pairs = append(pairs, "{"+kv[i]+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(c.Get(key))
}

// Money は金額をロシア語ロケールの桁区切りで表示する。
func (c *Catalog) Money(m model.Money) string {
	if m%100 == 0 {
		return c.printer.Sprintf("%d", int64(m/100))
	}
	return c.printer.Sprintf("%.2f", float64(m)/100)
}

// MonthName は月名を返す。
func (c *Catalog) MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return c.Months[m-1]
}

// MonthTitle は "июнь 2024" 形式の表示を返す。
func (c *Catalog) MonthTitle(year int, m time.Month) string {
	return fmt.Sprintf("%s %d", c.MonthName(m), year)
}

// Error はエラーに対応する文面を返す。AppError以外は汎用の文面。
func (c *Catalog) Error(err error) string {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		if s, ok := c.Texts[appErr.Code]; ok {
			return s
		}
	}
	return c.Get("internal_error")
}

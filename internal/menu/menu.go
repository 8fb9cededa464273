// Package menu reads the menu from a published spreadsheet CSV.
package menu

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	TypeItem = "item"
	TypeNote = "note"

	defaultCategory = "Menu"
	unsortedKey     = 9999
)

// Row is one menu line: a priced item or a free-text note.
type Row struct {
	Category     string   `json:"category"`
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Price        *string  `json:"price"`
	Badge        string   `json:"badge,omitempty"`
	SortCategory *float64 `json:"sortCategory"`
	SortItem     *float64 `json:"sortItem"`
	Active       bool     `json:"active"`
}

// Category groups rows under a heading.
type Category struct {
	Name string  `json:"name"`
	Sort float64 `json:"sort"`
	Rows []Row   `json:"rows"`
}

var (
	ErrNoURL  = errors.New("menu: sheet CSV URL is not configured")
	ErrStatus = errors.New("menu: unexpected sheet status")
)

// Client fetches the sheet.
type Client struct {
	http *http.Client
	url  string
}

func NewClient(client *http.Client, sheetURL string) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{http: client, url: sheetURL}
}

// Fetch downloads and parses the sheet. Caching is disabled so that edits
// to the sheet show up immediately.
func (c *Client) Fetch(ctx context.Context) ([]Category, error) {
	if c.url == "" {
		return nil, ErrNoURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("menu: build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("menu: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return Parse(resp.Body)
}

// column aliases, compared after keyify.
var columns = map[string][]string{
	"category":     {"CATEGORY"},
	"type":         {"TYPE"},
	"name":         {"NAME"},
	"description":  {"DESCRIPTION"},
	"price":        {"PRICE"},
	"badge":        {"BADGE"},
	"sortCategory": {"SORT CATEGORY", "SORT_CATEGORY"},
	"sortItem":     {"SORT ITEM", "SORT_ITEM"},
	"active":       {"ACTIVE (TRUE/FALSE)", "ACTIVE TRUE/FALSE", "ACTIVE"},
}

var spaces = regexp.MustCompile(`\s+`)

// keyify normalizes a header so extra spaces and underscores don't matter.
func keyify(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
}

// Parse reads the CSV and returns categories in display order.
func Parse(r io.Reader) ([]Category, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []Category{}, nil
	}

	header, data := records[0], records[1:]
	idx := make(map[string]int, len(header))
	for i, h := range header {
		k := keyify(h)
		if _, dup := idx[k]; !dup {
			idx[k] = i
		}
	}
	col := make(map[string]int, len(columns))
	for field, aliases := range columns {
		col[field] = -1
		for _, a := range aliases {
			if i, ok := idx[keyify(a)]; ok {
				col[field] = i
				break
			}
		}
	}
	get := func(rec []string, field string) string {
		i := col[field]
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]Row, 0, len(data))
	for _, rec := range data {
		row := Row{
			Category:     get(rec, "category"),
			Type:         TypeItem,
			Name:         get(rec, "name"),
			Description:  get(rec, "description"),
			Badge:        get(rec, "badge"),
			SortCategory: toNum(get(rec, "sortCategory")),
			SortItem:     toNum(get(rec, "sortItem")),
			Active:       toBool(get(rec, "active"), true),
		}
		if row.Category == "" {
			row.Category = defaultCategory
		}
		if strings.ToLower(get(rec, "type")) == TypeNote {
			row.Type = TypeNote
		}
		if p := get(rec, "price"); p != "" {
			p = strings.TrimPrefix(p, "$")
			row.Price = &p
		}

		if !row.Active {
			continue
		}
		// Items need a name; notes may be description only.
		if row.Type == TypeItem && row.Name == "" {
			continue
		}
		rows = append(rows, row)
	}

	return group(rows), nil
}

// readRecords reads all CSV records, tolerating ragged rows, and drops
// rows whose cells are all blank.
func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var out [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("menu: parse csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func group(rows []Row) []Category {
	byName := make(map[string]*Category)
	order := make([]string, 0)

	for _, row := range rows {
		cat, ok := byName[row.Category]
		if !ok {
			cat = &Category{Name: row.Category, Sort: unsortedKey}
			byName[row.Category] = cat
			order = append(order, row.Category)
		}
		if row.SortCategory != nil && *row.SortCategory < cat.Sort {
			cat.Sort = *row.SortCategory
		}
		cat.Rows = append(cat.Rows, row)
	}

	cats := make([]Category, 0, len(order))
	for _, name := range order {
		c := byName[name]
		sort.SliceStable(c.Rows, func(i, j int) bool {
			si, sj := sortKey(c.Rows[i].SortItem), sortKey(c.Rows[j].SortItem)
			if si != sj {
				return si < sj
			}
			return label(c.Rows[i]) < label(c.Rows[j])
		})
		cats = append(cats, *c)
	}

	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Sort != cats[j].Sort {
			return cats[i].Sort < cats[j].Sort
		}
		return cats[i].Name < cats[j].Name
	})
	return cats
}

func sortKey(v *float64) float64 {
	if v == nil {
		return unsortedKey
	}
	return *v
}

func label(r Row) string {
	if r.Name != "" {
		return strings.ToLower(r.Name)
	}
	return strings.ToLower(r.Description)
}

func toBool(s string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return def
	}
	return v == "true" || v == "yes" || v == "1"
}

func toNum(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.Replace(s, "$", "", 1), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

package generator

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/quiz"
)

// LoadBank reads questions from a spreadsheet: column A is the question, B the
// answer and C the solution. The first row is a header. Rows without a
// question or an answer are skipped.
func LoadBank(path, sheet string) ([]domain.Quiz, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var bank []domain.Quiz
	for i, row := range rows {
		if i == 0 {
			continue
		}

		cell := func(c int) string {
			if c < len(row) {
				return strings.TrimSpace(row[c])
			}
			return ""
		}

		q := domain.Quiz{Question: cell(0), Answer: cell(1), Solution: cell(2)}
		if q.Question == "" || q.Answer == "" {
			continue
		}
		bank = append(bank, q)
	}

	if len(bank) == 0 {
		return nil, fmt.Errorf("sheet %q of %s has no questions", sheet, path)
	}

	return bank, nil
}

// Bank draws questions from rows at random. Once every row is stored, every
// draw conflicts and the quiz builder gives up after its retry bound.
func Bank(rows []domain.Quiz, r *Rand) quiz.Source {
	return func() (domain.Quiz, error) {
		if len(rows) == 0 {
			return domain.Quiz{}, fmt.Errorf("empty question bank")
		}
		return rows[r.IntN(len(rows))], nil
	}
}

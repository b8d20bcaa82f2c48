package fetcher

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "a,b,c\n1,2,3\n4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_HeaderAndTrim(t *testing.T) {
	headerCh := make(chan []string, 1)
	input := "\ufeffId, Email \n 1 , a@b.in \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Email"}, <-headerCh)
	assert.Equal(t, [][]string{{"1", "a@b.in"}}, rows)
}

func TestStreamCSV_VariableFields(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader("a,b\n1\n1,2,3\n"), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Len(t, rows[1], 1)
}

func TestStreamCSV_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rowCh, errCh := StreamCSV(ctx, strings.NewReader("a\n1\n"), CSVOptions{})
	_, err := collectRows(t, rowCh, errCh)
	require.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	header, rows, err := ReadCSV(context.Background(), strings.NewReader("\ufeffId,Primary Skill\n1,\"PGT, Physics\"\n2,PRT\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Primary Skill"}, header)
	assert.Equal(t, [][]string{{"1", "PGT, Physics"}, {"2", "PRT"}}, rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, _, err := ReadCSV(context.Background(), strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header")
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"id", "skill"}, [][]string{{"1", "Physics, Chemistry"}}))
	assert.Equal(t, "id,skill\n1,\"Physics, Chemistry\"\n", buf.String())

	header, rows, err := ReadCSV(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "skill"}, header)
	assert.Equal(t, [][]string{{"1", "Physics, Chemistry"}}, rows)
}

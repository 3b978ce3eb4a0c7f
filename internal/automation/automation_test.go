package automation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/p2p/internal/docid"
)

func TestExtractPrefersLabels(t *testing.T) {
	e := NewExtractor(docid.DefaultTable())

	id, ok := e.Extract(StepPurchaseOrder, "ref 4500000099\nStandard PO created under the number 4500001075")
	require.True(t, ok)
	require.Equal(t, "4500001075", id)

	id, ok = e.Extract(StepSupplierInvoice, "Document no. 5105600001 was posted")
	require.True(t, ok)
	require.Equal(t, "5105600001", id)

	id, ok = e.Extract(StepGoodsReceipt, "Material document 5000012345 posted")
	require.True(t, ok)
	require.Equal(t, "5000012345", id)
}

func TestExtractFallbackRestrictedToPrefixes(t *testing.T) {
	e := NewExtractor(docid.DefaultTable())

	id, ok := e.Extract(StepPurchaseOrder, "saved 1234567890 then 4100000007 ok")
	require.True(t, ok)
	require.Equal(t, "4100000007", id)

	_, ok = e.Extract(StepPurchaseOrder, "saved 1234567890")
	require.False(t, ok)

	_, ok = e.Extract(StepPayment, "cleared 5105600001")
	require.False(t, ok)
}

func TestInputsEnvironSortedAndSkipsEmpty(t *testing.T) {
	env := Inputs{InputQuantity: "5", InputMaterial: "MAT-01", InputPrice: ""}.environ()
	require.Equal(t, []string{"MATERIAL=MAT-01", "QUANTITY=5"}, env)
}

func TestStepErrorMatchesSentinel(t *testing.T) {
	err := error(&StepError{Step: StepPayment, Output: "boom", Err: errors.New("exit status 1")})
	require.ErrorIs(t, err, ErrStepFailed)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Equal(t, "boom", stepErr.Diagnostic())
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func newShellRunner(t *testing.T, scripts map[Step]string, timeout time.Duration) *ExecRunner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	runner, err := NewExecRunner(Config{Command: "sh", Scripts: scripts, StepTimeout: timeout}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return runner
}

func TestExecRunnerPassesInputs(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "gr.sh", "echo \"Material document 50000$PO_NUMBER posted\"\n")
	runner := newShellRunner(t, map[Step]string{StepGoodsReceipt: script}, 0)

	out, err := runner.Run(context.Background(), StepGoodsReceipt, Inputs{InputPONumber: "12345"})
	require.NoError(t, err)
	require.Equal(t, 0, out.ExitCode)
	require.Equal(t, "Material document 5000012345 posted", out.Text)
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "inv.sh", "echo 'locator not found: invoice field' >&2\nexit 3\n")
	runner := newShellRunner(t, map[Step]string{StepSupplierInvoice: script}, 0)

	out, err := runner.Run(context.Background(), StepSupplierInvoice, nil)
	require.ErrorIs(t, err, ErrStepFailed)
	require.Equal(t, 3, out.ExitCode)
	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	require.Contains(t, stepErr.Diagnostic(), "invoice field")
}

func TestExecRunnerTimeout(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "slow.sh", "sleep 5\n")
	runner := newShellRunner(t, map[Step]string{StepPayment: script}, 100*time.Millisecond)

	_, err := runner.Run(context.Background(), StepPayment, nil)
	require.ErrorIs(t, err, ErrStepFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, strings.Contains(err.Error(), "timeout"))
}

func TestExecRunnerMissingScript(t *testing.T) {
	runner := newShellRunner(t, map[Step]string{}, 0)
	_, err := runner.Run(context.Background(), StepPayment, nil)
	require.ErrorIs(t, err, ErrStepFailed)
}

func TestSessionSharesID(t *testing.T) {
	dir := t.TempDir()
	po := writeScript(t, dir, "po.sh", "echo \"session=$SESSION_ID\"\n")
	recoverScript := writeScript(t, dir, "recover.sh", "test -n \"$SESSION_ID\"\n")
	runner := newShellRunner(t, map[Step]string{StepPurchaseOrder: po, StepSessionRecover: recoverScript}, 0)

	sess, err := runner.OpenSession(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	out, err := sess.CreatePurchaseOrder(context.Background(), Inputs{InputMaterial: "MAT-01"})
	require.NoError(t, err)
	require.Equal(t, "session="+sess.ID(), out.Text)
	require.NoError(t, sess.Recover(context.Background()))
}

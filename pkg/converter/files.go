package converter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"

	"github.com/modoterra/sqlshift/pkg/core"
	"github.com/modoterra/sqlshift/pkg/notify"
)

// DownloadName is the file name used when saving a converted query.
const DownloadName = "converted-postgresql-query.sql"

const maxUploadBytes = 4 << 20

var samples = map[core.Dialect]string{
	core.DialectSQLServer: `-- SQL Server sample query
SELECT TOP 10
  o.OrderID,
  c.CustomerName,
  SUM(od.Quantity * p.Price) as TotalAmount
FROM Orders o
JOIN Customers c ON o.CustomerID = c.CustomerID
JOIN OrderDetails od ON o.OrderID = od.OrderID
JOIN Products p ON od.ProductID = p.ProductID
WHERE o.OrderDate > GETDATE() - 30
GROUP BY o.OrderID, c.CustomerName
ORDER BY TotalAmount DESC`,

	core.DialectOracle: `-- Oracle sample query
SELECT o.order_id,
  c.customer_name,
  SUM(od.quantity * p.price) as total_amount
FROM orders o
JOIN customers c ON o.customer_id = c.customer_id
JOIN order_details od ON o.order_id = od.order_id
JOIN products p ON od.product_id = p.product_id
WHERE o.order_date > SYSDATE - 30
GROUP BY o.order_id, c.customer_name
ORDER BY total_amount DESC
FETCH FIRST 10 ROWS ONLY`,

	core.DialectMySQL: `-- MySQL sample query
SELECT
  o.order_id,
  c.customer_name,
  SUM(od.quantity * p.price) as total_amount
FROM orders o
JOIN customers c ON o.customer_id = c.customer_id
JOIN order_details od ON o.order_id = od.order_id
JOIN products p ON od.product_id = p.product_id
WHERE o.order_date > DATE_SUB(NOW(), INTERVAL 30 DAY)
GROUP BY o.order_id, c.customer_name
ORDER BY total_amount DESC
LIMIT 10`,
}

// Sample returns the canned query for d.
func Sample(d core.Dialect) string {
	return samples[d]
}

// LoadFile reads a query from disk.
func LoadFile(path string, n notify.Notifier) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		notify.Error(n, "Error reading file", err.Error())
		return "", err
	}
	if info.Size() > maxUploadBytes {
		err := fmt.Errorf("%s is larger than %d bytes", path, maxUploadBytes)
		notify.Error(n, "Error reading file", err.Error())
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		notify.Error(n, "Error reading file", err.Error())
		return "", err
	}
	if !utf8.Valid(data) {
		err := fmt.Errorf("%s is not valid UTF-8 text", path)
		notify.Error(n, "Error reading file", err.Error())
		return "", err
	}

	notify.Success(n, fmt.Sprintf("File %q loaded successfully", filepath.Base(path)))
	return string(data), nil
}

// SaveFile writes content to dest. A directory (or empty dest) receives DownloadName.
func SaveFile(dest, content string, n notify.Notifier) (string, error) {
	if dest == "" {
		dest = "."
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, DownloadName)
	}

	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		notify.Error(n, "Failed to save query", err.Error())
		return "", err
	}
	notify.Success(n, "Query downloaded as SQL file")
	return dest, nil
}

// Clipboard writes text somewhere the user can paste from.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("no system clipboard available")
	}
	return clipboard.WriteAll(text)
}

// OSC52 copies through the terminal escape sequence, which works over SSH and
// without a clipboard utility.
type OSC52 struct {
	Out io.Writer
}

func (o OSC52) WriteAll(text string) error {
	_, err := osc52.New(text).WriteTo(o.Out)
	return err
}

// Copier tries the system clipboard first, then the fallback.
type Copier struct {
	Primary  Clipboard
	Fallback Clipboard
}

// NewCopier returns a copier using the system clipboard with an OSC 52 fallback on out.
func NewCopier(out io.Writer) *Copier {
	return &Copier{Primary: systemClipboard{}, Fallback: OSC52{Out: out}}
}

// Copy writes text and raises a notice with the outcome.
func (c *Copier) Copy(text string, n notify.Notifier) error {
	err := c.Primary.WriteAll(text)
	if err != nil && c.Fallback != nil {
		err = c.Fallback.WriteAll(text)
	}
	if err != nil {
		notify.Error(n, "Failed to copy to clipboard", "Your terminal might restrict clipboard access.")
		return err
	}
	notify.Success(n, "SQL query copied to clipboard")
	return nil
}

package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/p2p/internal/automation"
	"github.com/odyssey-erp/p2p/internal/bulk"
	"github.com/odyssey-erp/p2p/internal/procurement"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"0s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"10m"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`

	LedgerDir          string `envconfig:"LEDGER_DIR" default:"data"`
	DocumentPrefixFile string `envconfig:"DOCUMENT_PREFIX_FILE"`

	AutomationCommand     string        `envconfig:"AUTOMATION_COMMAND" default:"npx"`
	AutomationArgs        []string      `envconfig:"AUTOMATION_ARGS" default:"playwright,test"`
	AutomationWorkDir     string        `envconfig:"AUTOMATION_WORKDIR" default:"automation"`
	AutomationStepTimeout time.Duration `envconfig:"AUTOMATION_STEP_TIMEOUT" default:"5m"`

	ScriptPurchaseOrder   string `envconfig:"SCRIPT_PURCHASE_ORDER" default:"tests/create-po.spec.ts"`
	ScriptGoodsReceipt    string `envconfig:"SCRIPT_GOODS_RECEIPT" default:"tests/goods-receipt.spec.ts"`
	ScriptSupplierInvoice string `envconfig:"SCRIPT_SUPPLIER_INVOICE" default:"tests/supplier-invoice.spec.ts"`
	ScriptPayment         string `envconfig:"SCRIPT_PAYMENT" default:"tests/payment.spec.ts"`
	ScriptSessionRecover  string `envconfig:"SCRIPT_SESSION_RECOVER" default:"tests/session-recover.spec.ts"`
	ScriptSessionReset    string `envconfig:"SCRIPT_SESSION_RESET" default:"tests/session-reset.spec.ts"`

	DefaultSupplier string          `envconfig:"DEFAULT_SUPPLIER" default:"100045"`
	DefaultMaterial string          `envconfig:"DEFAULT_MATERIAL" default:"MAT-001"`
	DefaultQuantity decimal.Decimal `envconfig:"DEFAULT_QUANTITY" default:"1"`
	DefaultPrice    decimal.Decimal `envconfig:"DEFAULT_PRICE" default:"100"`

	BulkPurchOrg       string        `envconfig:"BULK_DEFAULT_PURCH_ORG" default:"1000"`
	BulkPurchGroup     string        `envconfig:"BULK_DEFAULT_PURCH_GROUP" default:"001"`
	BulkCompanyCode    string        `envconfig:"BULK_DEFAULT_COMPANY_CODE" default:"1000"`
	BulkPlant          string        `envconfig:"BULK_DEFAULT_PLANT" default:"1000"`
	BulkUnit           string        `envconfig:"BULK_DEFAULT_UOM" default:"EA"`
	BulkGLAccount      string        `envconfig:"BULK_DEFAULT_GL_ACCOUNT" default:"400000"`
	BulkCostCenter     string        `envconfig:"BULK_DEFAULT_COST_CENTER" default:"CC1000"`
	BulkExcludedDates  []string      `envconfig:"BULK_EXCLUDED_DATES"`
	BulkHistoryLimit   int           `envconfig:"BULK_HISTORY_LIMIT" default:"100"`
	BulkHistoryMaxAge  time.Duration `envconfig:"BULK_HISTORY_MAX_AGE" default:"720h"`
	BulkMaxUploadBytes int64         `envconfig:"BULK_MAX_UPLOAD_BYTES" default:"10485760"`

	LedgerVerifyCron  string `envconfig:"LEDGER_VERIFY_CRON" default:"@every 1h"`
	HistoryPruneCron  string `envconfig:"BULK_HISTORY_PRUNE_CRON" default:"@daily"`
	WorkerConcurrency int    `envconfig:"WORKER_CONCURRENCY" default:"2"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("app: load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LedgerDir == "" {
		return errors.New("ledger directory must be provided")
	}
	if !c.DefaultQuantity.IsPositive() || !c.DefaultPrice.IsPositive() {
		return errors.New("default quantity and price must be positive")
	}
	if c.BulkHistoryLimit <= 0 {
		return errors.New("bulk history limit must be positive")
	}
	if _, err := bulk.ParseWindows(c.BulkExcludedDates); err != nil {
		return err
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Automation returns the process runner settings.
func (c *Config) Automation() automation.Config {
	return automation.Config{
		Command:     c.AutomationCommand,
		Args:        c.AutomationArgs,
		WorkDir:     c.AutomationWorkDir,
		StepTimeout: c.AutomationStepTimeout,
		Scripts: map[automation.Step]string{
			automation.StepPurchaseOrder:   c.ScriptPurchaseOrder,
			automation.StepGoodsReceipt:    c.ScriptGoodsReceipt,
			automation.StepSupplierInvoice: c.ScriptSupplierInvoice,
			automation.StepPayment:         c.ScriptPayment,
			automation.StepSessionRecover:  c.ScriptSessionRecover,
			automation.StepSessionReset:    c.ScriptSessionReset,
		},
	}
}

// CommandDefaults returns the values used when a command omits parameters.
func (c *Config) CommandDefaults() procurement.Defaults {
	return procurement.Defaults{
		Supplier: c.DefaultSupplier,
		Material: c.DefaultMaterial,
		Quantity: c.DefaultQuantity,
		Price:    c.DefaultPrice,
	}
}

// RecordDefaults returns the organisational defaults for bulk records.
func (c *Config) RecordDefaults() bulk.RecordDefaults {
	return bulk.RecordDefaults{
		Supplier:    c.DefaultSupplier,
		PurchOrg:    c.BulkPurchOrg,
		PurchGroup:  c.BulkPurchGroup,
		CompanyCode: c.BulkCompanyCode,
		Plant:       c.BulkPlant,
		Unit:        c.BulkUnit,
		GLAccount:   c.BulkGLAccount,
		CostCenter:  c.BulkCostCenter,
	}
}

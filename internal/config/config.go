package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	MetricsPort string
	JWTSecret   string
	MongoURI    string
	DBName      string
	SkipAuth    bool
	Environment string
	AppId       string

	Inventory InventoryConfig
	Images    ImagesConfig
	Sync      SyncConfig

	OLX          OLXConfig
	MercadoLivre MercadoLivreConfig
	ICarros      ICarrosConfig
	WebMotors    WebMotorsConfig
}

// InventoryConfig points at the dealer's legacy vehicle database.
type InventoryConfig struct {
	Driver   string // "postgresql" or "mysql"
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type ImagesConfig struct {
	BaseURL    string
	PathPrefix string
}

type SyncConfig struct {
	CheckIntervalMin int
	LeadsIntervalMin int
	MaxRetries       int
	BatchSize        int
}

type OLXConfig struct {
	Enabled       bool
	ClientID      string
	ClientSecret  string
	RedirectURI   string
	APIURL        string
	AuthURL       string
	CategoryCars  int
	CategoryMoto  int
	CategoryTruck int
}

type MercadoLivreConfig struct {
	Enabled       bool
	AppID         string
	ClientSecret  string
	RedirectURI   string
	APIURL        string
	AuthURL       string
	SiteID        string
	CategoryCars  string
	CategoryMoto  string
	CategoryTruck string
}

type ICarrosConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	APIURL       string
	AuthURL      string
}

type WebMotorsConfig struct {
	Enabled      bool
	Environment  string // "homologation" or "production"
	ClientID     string
	ClientSecret string
	RESTURLHml   string
	RESTURLProd  string
	SOAPEndpoint string
}

// RESTURL picks the REST base URL for the configured environment.
func (c WebMotorsConfig) RESTURL() string {
	if c.Environment == "production" {
		return c.RESTURLProd
	}
	return c.RESTURLHml
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "portal-sync"),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "portal-sync"),

		Inventory: InventoryConfig{
			Driver:   getEnv("INVENTORY_DB_DRIVER", "mysql"),
			Host:     getEnv("INVENTORY_DB_HOST", "localhost"),
			Port:     getEnvInt("INVENTORY_DB_PORT", 0),
			Database: getEnv("INVENTORY_DB_NAME", "dealer"),
			Username: getEnv("INVENTORY_DB_USER", "root"),
			Password: getEnv("INVENTORY_DB_PASSWORD", ""),
		},

		Images: ImagesConfig{
			BaseURL:    getEnv("IMAGES_CDN_URL", "https://cdn.sulrevendas.com.br"),
			PathPrefix: getEnv("IMAGES_PATH_PREFIX", "/veiculos/"),
		},

		Sync: SyncConfig{
			CheckIntervalMin: getEnvInt("PORTAL_SYNC_INTERVAL", 15),
			LeadsIntervalMin: getEnvInt("PORTAL_LEADS_INTERVAL", 5),
			MaxRetries:       getEnvInt("PORTAL_MAX_RETRIES", 3),
			BatchSize:        getEnvInt("PORTAL_BATCH_SIZE", 50),
		},

		OLX: OLXConfig{
			Enabled:       getEnv("OLX_ENABLED", "false") == "true",
			ClientID:      getEnv("OLX_CLIENT_ID", ""),
			ClientSecret:  getEnv("OLX_CLIENT_SECRET", ""),
			RedirectURI:   getEnv("OLX_REDIRECT_URI", ""),
			APIURL:        getEnv("OLX_API_URL", "https://apps.olx.com.br"),
			AuthURL:       getEnv("OLX_AUTH_URL", "https://auth.olx.com.br"),
			CategoryCars:  2020,
			CategoryMoto:  2060,
			CategoryTruck: 2080,
		},

		MercadoLivre: MercadoLivreConfig{
			Enabled:       getEnv("MERCADOLIVRE_ENABLED", "false") == "true",
			AppID:         getEnv("MERCADOLIVRE_APP_ID", ""),
			ClientSecret:  getEnv("MERCADOLIVRE_CLIENT_SECRET", ""),
			RedirectURI:   getEnv("MERCADOLIVRE_REDIRECT_URI", ""),
			APIURL:        getEnv("MERCADOLIVRE_API_URL", "https://api.mercadolibre.com"),
			AuthURL:       getEnv("MERCADOLIVRE_AUTH_URL", "https://auth.mercadolivre.com.br"),
			SiteID:        getEnv("MERCADOLIVRE_SITE_ID", "MLB"),
			CategoryCars:  "MLB1744",
			CategoryMoto:  "MLB1051",
			CategoryTruck: "MLB1766",
		},

		ICarros: ICarrosConfig{
			Enabled:      getEnv("ICARROS_ENABLED", "false") == "true",
			ClientID:     getEnv("ICARROS_CLIENT_ID", ""),
			ClientSecret: getEnv("ICARROS_CLIENT_SECRET", ""),
			APIURL:       getEnv("ICARROS_API_URL", "https://core-api.icarros.com.br"),
			AuthURL:      getEnv("ICARROS_AUTH_URL", "https://accounts.icarros.com/auth/realms/icarros/protocol/openid-connect"),
		},

		WebMotors: WebMotorsConfig{
			Enabled:      getEnv("WEBMOTORS_ENABLED", "false") == "true",
			Environment:  getEnv("WEBMOTORS_ENV", "homologation"),
			ClientID:     getEnv("WEBMOTORS_CLIENT_ID", ""),
			ClientSecret: getEnv("WEBMOTORS_CLIENT_SECRET", ""),
			RESTURLHml:   getEnv("WEBMOTORS_REST_URL_HML", "https://hlg-webmotors.sensedia.com"),
			RESTURLProd:  getEnv("WEBMOTORS_REST_URL_PROD", "https://api-webmotors.sensedia.com"),
			SOAPEndpoint: getEnv("WEBMOTORS_SOAP_ENDPOINT", "https://integracao.webmotors.com.br/wsEstoqueRevendedorWebMotors.asmx"),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

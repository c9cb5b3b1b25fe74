package inventory

import (
	"context"
	"database/sql"
	"fmt"

	"go-portal-sync/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLSource reads vehicles from the dealer's legacy SQL database
// (PostgreSQL or MySQL, selected by config).
type SQLSource struct {
	dbType string // "postgresql" or "mysql"
	db     *sql.DB
}

// NewSQLSource opens the inventory database connection.
func NewSQLSource(cfg *config.Config) (Source, error) {
	s := &SQLSource{dbType: cfg.Inventory.Driver}

	connStr, err := s.buildConnectionString(cfg.Inventory)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	driver := s.dbType
	if s.dbType == "postgresql" {
		driver = "postgres"
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	s.db = db
	return s, nil
}

func (s *SQLSource) buildConnectionString(cfg config.InventoryConfig) (string, error) {
	if cfg.Host == "" || cfg.Database == "" || cfg.Username == "" {
		return "", fmt.Errorf("missing required connection parameters")
	}

	port := cfg.Port
	if port == 0 {
		if s.dbType == "postgresql" {
			port = 5432
		} else {
			port = 3306
		}
	}

	if s.dbType == "postgresql" {
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, port, cfg.Username, cfg.Password, cfg.Database,
		), nil
	}

	// MySQL
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username, cfg.Password, cfg.Host, port, cfg.Database,
	), nil
}

// TestConnection tests if the database connection is valid
func (s *SQLSource) TestConnection(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection not established")
	}
	return s.db.PingContext(ctx)
}

// getPlaceholder returns the appropriate placeholder for the database type
func (s *SQLSource) getPlaceholder(index int) string {
	if s.dbType == "postgresql" {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}

// GetVehicle loads a vehicle row plus its lookup relations, accessories and
// gallery images.
func (s *SQLSource) GetVehicle(ctx context.Context, vehicleID string) (*Vehicle, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	query := fmt.Sprintf(`
		SELECT v.veiculo_id, v.anunciante_id, v.categoria_id,
		       v.fipe_marca_nome, v.kbb_marca_nome,
		       v.fipe_modelo_nome, v.kbb_modelo_nome,
		       v.fipe_versao_nome, v.kbb_versao_nome,
		       v.veiculo_ano_modelo, v.veiculo_ano_fabricacao,
		       v.veiculo_valor, v.veiculo_km, v.veiculo_portas,
		       v.veiculo_placa, v.veiculo_renavam,
		       v.veiculo_descricao, v.veiculo_obs,
		       v.zero_km, v.blindado, v.destaque, v.video_url,
		       v.anunciante_telefone, v.anunciante_cep,
		       cor.cor_nome, comb.combustivel_nome, cam.cambio_nome, car.carroceria_nome
		FROM tb_veiculos v
		LEFT JOIN tb_cores cor ON cor.cor_id = v.cor_id
		LEFT JOIN tb_combustiveis comb ON comb.combustivel_id = v.combustivel_id
		LEFT JOIN tb_cambios cam ON cam.cambio_id = v.cambio_id
		LEFT JOIN tb_carrocerias car ON car.carroceria_id = v.carroceria_id
		WHERE v.veiculo_id = %s`, s.getPlaceholder(1))

	var (
		v                                            Vehicle
		fipeBrand, kbbBrand, fipeModel, kbbModel     sql.NullString
		fipeTrim, kbbTrim, plate, renavam            sql.NullString
		description, notes, videoURL, phone, zipcode sql.NullString
		color, fuel, transmission, body              sql.NullString
		modelYear, manufYear, mileage, doors         sql.NullInt64
		categoryID                                   sql.NullInt64
		price                                        sql.NullFloat64
		zeroKm, armored, spotlight                   sql.NullBool
		advertiserID                                 sql.NullString
	)

	err := s.db.QueryRowContext(ctx, query, vehicleID).Scan(
		&v.ID, &advertiserID, &categoryID,
		&fipeBrand, &kbbBrand,
		&fipeModel, &kbbModel,
		&fipeTrim, &kbbTrim,
		&modelYear, &manufYear,
		&price, &mileage, &doors,
		&plate, &renavam,
		&description, &notes,
		&zeroKm, &armored, &spotlight, &videoURL,
		&phone, &zipcode,
		&color, &fuel, &transmission, &body,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vehicle %s not found", vehicleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle %s: %w", vehicleID, err)
	}

	v.AdvertiserID = advertiserID.String
	v.CategoryID = int(categoryID.Int64)
	if v.CategoryID == 0 {
		v.CategoryID = 1
	}
	v.FipeBrandName = fipeBrand.String
	v.KbbBrandName = kbbBrand.String
	v.FipeModelName = fipeModel.String
	v.KbbModelName = kbbModel.String
	v.FipeTrimName = fipeTrim.String
	v.KbbTrimName = kbbTrim.String
	v.ModelYear = int(modelYear.Int64)
	v.ManufactureYear = int(manufYear.Int64)
	v.Price = price.Float64
	v.Mileage = int(mileage.Int64)
	v.Doors = int(doors.Int64)
	v.Plate = plate.String
	v.Renavam = renavam.String
	v.Description = description.String
	v.Notes = notes.String
	v.ZeroKm = zeroKm.Bool
	v.Armored = armored.Bool
	v.Spotlight = spotlight.Bool
	v.VideoURL = videoURL.String
	v.AdvertiserPhone = phone.String
	v.AdvertiserZipCode = zipcode.String
	v.Color = color.String
	v.Fuel = fuel.String
	v.Transmission = transmission.String
	v.BodyStyle = body.String

	if v.Accessories, err = s.loadAccessories(ctx, vehicleID); err != nil {
		return nil, err
	}
	if v.Images, err = s.loadImages(ctx, vehicleID); err != nil {
		return nil, err
	}

	return &v, nil
}

// ListActiveVehicleIDs returns the ids of all vehicles eligible for
// publication.
func (s *SQLSource) ListActiveVehicleIDs(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT veiculo_id
		FROM tb_veiculos
		WHERE deleted_at IS NULL AND veiculo_status = 1
		ORDER BY veiculo_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active vehicles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLSource) loadAccessories(ctx context.Context, vehicleID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT a.acessorio_nome
		FROM tb_acessorios a
		JOIN tb_acessorios_veiculos av ON av.acessorio_id = a.acessorio_id
		WHERE av.veiculo_id = %s`, s.getPlaceholder(1))

	rows, err := s.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accessories: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLSource) loadImages(ctx context.Context, vehicleID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT imagem_nome
		FROM tb_galeria
		WHERE imagem_veiculo = %s AND deleted_at IS NULL
		ORDER BY ordem`, s.getPlaceholder(1))

	rows, err := s.db.QueryContext(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

package migrations

import (
	"database/sql"
	"time"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id CHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		slug VARCHAR(255) NOT NULL UNIQUE,
		price DECIMAL(15,2) NOT NULL,
		sale_price DECIMAL(15,2) NULL,
		stock INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME NULL
	);`,
	`CREATE TABLE IF NOT EXISTS carts (
		id CHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NULL UNIQUE,
		session_key VARCHAR(255) NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id CHAR(36) PRIMARY KEY,
		cart_id CHAR(36) NOT NULL,
		product_id CHAR(36) NOT NULL,
		quantity INT NOT NULL,
		added_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uq_cart_product (cart_id, product_id),
		FOREIGN KEY (cart_id) REFERENCES carts(id) ON DELETE CASCADE,
		FOREIGN KEY (product_id) REFERENCES products(id)
	);`,
	`CREATE TABLE IF NOT EXISTS orders (
		id CHAR(36) PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL UNIQUE,
		user_id VARCHAR(64) NULL,
		session_key VARCHAR(255) NULL,
		status VARCHAR(16) NOT NULL,
		payment_method VARCHAR(16) NOT NULL,
		full_name VARCHAR(150) NOT NULL,
		contact_phone VARCHAR(32) NOT NULL,
		delivery_address TEXT NOT NULL,
		notes TEXT NOT NULL,
		subtotal DECIMAL(15,2) NOT NULL,
		discount_total DECIMAL(15,2) NOT NULL,
		total_price DECIMAL(15,2) NOT NULL,
		total_items INT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_orders_user (user_id, created_at),
		KEY idx_orders_session (session_key, created_at),
		KEY idx_orders_status (status, created_at)
	);`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id CHAR(36) PRIMARY KEY,
		order_id CHAR(36) NOT NULL,
		product_id CHAR(36) NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(15,2) NOT NULL,
		total_price DECIMAL(15,2) NOT NULL,
		is_sale_price BOOLEAN NOT NULL DEFAULT FALSE,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS favorites (
		id CHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NULL,
		session_key VARCHAR(255) NULL,
		product_id CHAR(36) NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_fav_user_product (user_id, product_id),
		UNIQUE KEY uq_fav_session_product (session_key, product_id),
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS order_counters (
		prefix VARCHAR(8) NOT NULL,
		day CHAR(8) NOT NULL,
		seq INT NOT NULL,
		PRIMARY KEY (prefix, day)
	);`,
	`CREATE TABLE IF NOT EXISTS applications (
		id CHAR(36) PRIMARY KEY,
		application_number VARCHAR(32) NOT NULL UNIQUE,
		full_name VARCHAR(150) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		course_name VARCHAR(255) NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);`,
}

// AutoMigrate creates all tables if they do not exist.
func AutoMigrate(retries int, db *sql.DB) error {
	for _, query := range tables {
		_, err := db.Exec(query)
		if err != nil {
			// Retry creating the table
			for i := 0; i < retries; i++ {
				time.Sleep(1 * time.Second)
				_, err = db.Exec(query)
				if err == nil {
					break
				}
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

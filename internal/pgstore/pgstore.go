package pgstore

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docpipe/internal/models"
)

// Record is a stored chunk row with its embedding in a pgvector column.
type Record struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            int64             `bun:"id,pk,autoincrement"`
	ChunkID       string            `bun:"chunk_id,notnull"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	SequenceIndex int               `bun:"sequence_index,notnull"`
	Embedding     []float32         `bun:"embedding,notnull,type:vector(768)"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn, password string) (*sql.DB, error) {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn+"?sslmode=disable"), pgdriver.WithPassword(password))), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx)
	return err
}

// StoreChunks inserts chunks with their already computed embeddings. The
// slices are index-aligned.
func StoreChunks(ctx context.Context, db *bun.DB, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = Record{
			ChunkID:       chunk.ID,
			Content:       chunk.Text,
			Metadata:      chunk.Metadata,
			SequenceIndex: chunk.SequenceIndex,
			Embedding:     embeddings[i],
		}
	}
	_, err := db.NewInsert().Model(&records).Exec(ctx)
	return err
}

// SearchChunks returns the limit nearest chunks by ascending vector distance.
func SearchChunks(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int) ([]models.Chunk, error) {
	var records []Record
	err := db.NewSelect().
		Model(&records).
		Column("chunk_id", "content", "metadata", "sequence_index").
		OrderExpr("embedding <-> ?", queryEmbedding).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(records))
	for i, r := range records {
		chunks[i] = models.Chunk{
			ID:            r.ChunkID,
			Text:          r.Content,
			Metadata:      r.Metadata,
			SequenceIndex: r.SequenceIndex,
		}
	}
	return chunks, nil
}

// drop table chunks

func DropChunks(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Record)(nil)).IfExists().Exec(ctx)
	return err
}

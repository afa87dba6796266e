package sendmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/ptgott/mailprovider/email"
	"github.com/ptgott/mailprovider/storage"
	"github.com/ptgott/mailprovider/userconfig"
	"github.com/ptgott/mailprovider/workerpool"
	"github.com/rs/zerolog/log"
)

const defaultAttachmentType = "application/octet-stream"

// Options are the per-invocation settings that come from command-line flags
// rather than the config file.
type Options struct {
	// Recipients. If empty, the toAddress from the config file is used.
	To      []string
	Subject string
	Issuer  string
	Body    io.Reader
	// Path to a file to attach. Run refuses attachments for plain text
	// messages.
	AttachmentPath string
	// Media type of the attachment. Guessed from the file extension if
	// empty.
	AttachmentType string
	// Write rendered messages to Output instead of sending them. Nothing
	// is written to the journal.
	DryRun bool
	Output io.Writer
}

// ParseRecipients splits a comma-separated list of addresses, dropping
// empty entries.
func ParseRecipients(s string) []string {
	var r []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			r = append(r, a)
		}
	}
	return r
}

// Run sends one message per recipient and returns once every message has
// been handed off. In synchronous mode, failed sends are logged and
// returned together. In asynchronous mode, Run waits for the worker pool
// to drain but failures only reach the log and the journal.
func Run(ctx context.Context, o Options, config *userconfig.Meta) error {
	to := o.To
	if len(to) == 0 && config.EmailSettings.ToAddress != "" {
		to = []string{config.EmailSettings.ToAddress}
	}
	if len(to) == 0 {
		return errors.New("no recipients: use -to or set toAddress in the config")
	}

	if o.Body == nil {
		return errors.New("no message body provided")
	}
	bod, err := io.ReadAll(o.Body)
	if err != nil {
		return fmt.Errorf("can't read the message body: %v", err)
	}

	var att []byte
	var attType string
	if o.AttachmentPath != "" {
		if config.EmailSettings.ContentType == email.Plain {
			return errors.New("plain text messages can't carry attachments: set contentType to html")
		}
		att, attType, err = readAttachment(
			o.AttachmentPath,
			o.AttachmentType,
			config.EmailSettings.MaxAttachmentSize,
		)
		if err != nil {
			return err
		}
	}

	b := config.EmailSettings.NewBuilder()

	if o.DryRun {
		if o.Output == nil {
			return errors.New("a dry run needs somewhere to write messages")
		}
		b.WithTransportClient(&email.WriterTransport{W: o.Output})
	}

	var db storage.KeyValue
	switch {
	case config.Journal == nil:
	case o.DryRun:
		// Outcomes still go through the journal but aren't stored.
		db = &storage.NoOpDB{}
	default:
		bdb, err := storage.NewBadgerDB(config.Journal)
		if err != nil {
			return err
		}
		db = bdb
		log.Info().
			Str("storageDir", config.Journal.StorageDirPath).
			Msg("set up the journal successfully")
	}
	if db != nil {
		b.WithJournal(storage.NewJournal(db))
	}

	var wp *workerpool.Pool
	if n := config.EmailSettings.Workers; n > 0 {
		wp = workerpool.New(n)
		b.WithWorkerPool(wp)
	}

	cfg, err := b.Build()
	if err != nil {
		closeJournal(db)
		return err
	}

	log.Info().
		Int("count", len(to)).
		Str("contentType", cfg.ContentType().String()).
		Bool("async", cfg.Async()).
		Msg("sending messages")

	var errs []error
	for _, addr := range to {
		d, err := cfg.To(addr)
		if err != nil {
			log.Error().Err(err).Str("to", addr).Msg("skipping recipient")
			errs = append(errs, err)
			continue
		}
		d.Content(string(bod))
		if o.Subject != "" {
			d.Subject(o.Subject)
		}
		if o.Issuer != "" {
			d.Issuer(o.Issuer)
		}
		if att != nil {
			d.Attachment(filepath.Base(o.AttachmentPath), att, attType)
		}
		if err := d.Send(ctx); err != nil {
			log.Error().Err(err).Str("to", addr).Msg("error sending an email")
			errs = append(errs, err)
		}
	}

	if wp != nil {
		waitForPool(wp, db, config.Journal)
	}

	closeJournal(db)

	return errors.Join(errs...)
}

// waitForPool blocks until wp has no pending tasks, cleaning up the journal
// every cleanup interval in the meantime.
func waitForPool(wp *workerpool.Pool, db storage.KeyValue, kc *storage.KVConfig) {
	done := make(chan struct{})
	go func() {
		wp.Wait()
		close(done)
	}()

	if db == nil {
		<-done
		return
	}

	t := time.NewTicker(kc.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			log.Debug().Int("pending", wp.Pending()).Msg("cleaning up the journal")
			if err := db.Cleanup(); err != nil {
				log.Error().Err(err).Msg("error cleaning up the journal")
			}
		}
	}
}

// closeJournal gets rid of expired outcomes and closes the database so
// BadgerDB flushes to disk.
//
// https://pkg.go.dev/github.com/dgraph-io/badger#readme-i-don-t-see-any-disk-writes-why
func closeJournal(db storage.KeyValue) {
	if db == nil {
		return
	}
	if err := db.Cleanup(); err != nil {
		log.Error().Err(err).Msg("error cleaning up the journal")
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("error closing the journal")
		return
	}
	log.Info().Msg("closed the journal to flush data to disk")
}

// readAttachment reads the file at path, refusing files larger than max.
// If mediaType is empty, it is guessed from the file extension.
func readAttachment(path, mediaType string, max int64) ([]byte, string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("can't read the attachment: %v", err)
	}
	if max > 0 && fi.Size() > max {
		return nil, "", fmt.Errorf(
			"the attachment is %v, more than the maximum of %v",
			units.Base2Bytes(fi.Size()),
			units.Base2Bytes(max),
		)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("can't read the attachment: %v", err)
	}

	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mediaType == "" {
		mediaType = defaultAttachmentType
	}

	log.Debug().
		Str("path", path).
		Str("size", units.Base2Bytes(len(data)).String()).
		Str("mediaType", mediaType).
		Msg("read the attachment")

	return data, mediaType, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/storage"
)

type imageState string

const (
	stateMigrated imageState = "migrated"
	stateExternal imageState = "external"
	stateMissing  imageState = "missing"
	stateNone     imageState = "none"
)

type entry struct {
	ItemID uuid.UUID
	Name   string
	URL    string
	Key    string
	State  imageState
}

type report struct {
	Bucket     string
	Objects    int
	TotalBytes int64
	Entries    []entry
	Orphans    []string
}

func (r *report) count(state imageState) int {
	n := 0
	for _, e := range r.Entries {
		if e.State == state {
			n++
		}
	}
	return n
}

// audit classifies every item image against the bucket. Objects under prefix
// that no item references are reported as orphans.
func audit(ctx context.Context, bucket storage.Bucket, prefix string, items []models.MenuItem) (*report, error) {
	objects, err := bucket.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}

	rep := &report{Bucket: bucket.Name(), Objects: len(objects)}
	stored := make(map[string]bool, len(objects))
	for _, obj := range objects {
		stored[obj.Key] = true
		rep.TotalBytes += obj.Size
	}

	referenced := map[string]bool{}
	for _, item := range items {
		e := entry{ItemID: item.ID, Name: item.Name}
		if item.ImageURL != nil {
			e.URL = strings.TrimSpace(*item.ImageURL)
		}
		switch key, ok := storage.KeyFromURL(bucket, e.URL); {
		case e.URL == "":
			e.State = stateNone
		case !ok:
			e.State = stateExternal
		case stored[key]:
			e.Key, e.State = key, stateMigrated
			referenced[key] = true
		default:
			// The listing may be scoped by prefix; confirm before flagging.
			exists, err := bucket.Exists(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("check %s: %w", key, err)
			}
			e.Key = key
			if exists {
				e.State = stateMigrated
			} else {
				e.State = stateMissing
			}
		}
		rep.Entries = append(rep.Entries, e)
	}

	for _, obj := range objects {
		if !referenced[obj.Key] {
			rep.Orphans = append(rep.Orphans, obj.Key)
		}
	}
	return rep, nil
}

func (r *report) write(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "bucket\t%s\n", r.Bucket)
	fmt.Fprintf(tw, "objects\t%d (%.1f KB)\n", r.Objects, float64(r.TotalBytes)/1024)
	fmt.Fprintf(tw, "migrated\t%d\n", r.count(stateMigrated))
	fmt.Fprintf(tw, "external\t%d\n", r.count(stateExternal))
	fmt.Fprintf(tw, "missing\t%d\n", r.count(stateMissing))
	fmt.Fprintf(tw, "no image\t%d\n", r.count(stateNone))
	fmt.Fprintln(tw)
	for _, e := range r.Entries {
		if e.State == stateMigrated || e.State == stateNone {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.State, e.ItemID, e.Name, e.URL)
	}
	for _, key := range r.Orphans {
		fmt.Fprintf(tw, "orphan\t%s\n", key)
	}
	return tw.Flush()
}

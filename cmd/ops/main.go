package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cybertodo/internal/config"
	"cybertodo/internal/ops"
	"cybertodo/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "backup":
		if err := cmdBackup(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "backup failed:", err)
			os.Exit(1)
		}
	case "restore":
		if err := cmdRestore(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "restore failed:", err)
			os.Exit(1)
		}
	case "drill":
		if err := cmdDrill(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "drill failed:", err)
			os.Exit(1)
		}
	case "inspect":
		if err := cmdInspect(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "inspect failed:", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(2)
	}
}

type slotFlags struct {
	configPath *string
	dataDir    *string
	key        *string
}

func addSlotFlags(fs *flag.FlagSet) slotFlags {
	return slotFlags{
		configPath: fs.String("config", config.DefaultPath, "config file (optional)"),
		dataDir:    fs.String("data-dir", "", "data directory (overrides config)"),
		key:        fs.String("key", "", "storage key (overrides config)"),
	}
}

func (f slotFlags) open() (storage.KV, string, error) {
	cfg, err := config.LoadOptional(*f.configPath)
	if err != nil {
		return nil, "", err
	}
	cfg.ApplyEnv()
	if *f.dataDir != "" {
		cfg.DataDir = *f.dataDir
	}
	if *f.key != "" {
		cfg.Storage.Key = *f.key
	}
	kv, err := storage.NewFileKV(cfg.DataDir)
	if err != nil {
		return nil, "", err
	}
	return kv, cfg.Storage.Key, nil
}

func cmdBackup(args []string) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	slot := addSlotFlags(fs)
	out := fs.String("out", "", "output archive path (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kv, key, err := slot.open()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if *out == "" {
		*out = filepath.Join("backups", "cybertodo-"+now.Format("20060102T150405Z")+".tar.gz")
	}

	m, err := ops.Backup(kv, key, *out, now)
	if err != nil {
		return err
	}
	fmt.Println(*out)
	fmt.Printf("tasks: %d  schema: v%d  sha256: %s\n", m.TaskCount, m.SchemaVersion, m.SHA256)
	return nil
}

func cmdRestore(args []string) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	slot := addSlotFlags(fs)
	archive := fs.String("archive", "", "input backup archive (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("archive is required")
	}

	kv, key, err := slot.open()
	if err != nil {
		return err
	}
	m, err := ops.Restore(*archive, kv, key)
	if err != nil {
		return err
	}
	fmt.Printf("restored %d tasks into %q\n", m.TaskCount, key)
	return nil
}

func cmdDrill(args []string) error {
	fs := flag.NewFlagSet("drill", flag.ContinueOnError)
	slot := addSlotFlags(fs)
	workDir := fs.String("work-dir", os.TempDir(), "temporary workspace for drill artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kv, key, err := slot.open()
	if err != nil {
		return err
	}
	res, err := ops.Drill(kv, key, *workDir, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Println("backup:", res.Archive)
	fmt.Println("tasks:", res.Manifest.TaskCount)
	fmt.Println("digest:", res.Manifest.SHA256)
	return nil
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	archive := fs.String("archive", "", "backup archive (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("archive is required")
	}

	m, _, err := ops.ReadArchive(*archive)
	if err != nil {
		return err
	}
	fmt.Println("key:", m.Key)
	fmt.Println("schema:", m.SchemaVersion)
	fmt.Println("tasks:", m.TaskCount)
	fmt.Println("created:", m.CreatedAt.Format(time.RFC3339))
	fmt.Println("sha256:", m.SHA256)
	return nil
}

func printUsage() {
	fmt.Println("usage:")
	fmt.Println("  todo-ops backup  --data-dir data --out backups/backup.tar.gz")
	fmt.Println("  todo-ops restore --data-dir data --archive backups/backup.tar.gz")
	fmt.Println("  todo-ops drill   --data-dir data --work-dir /tmp")
	fmt.Println("  todo-ops inspect --archive backups/backup.tar.gz")
}

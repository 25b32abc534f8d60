package main

import (
	"bufio"
	"context"
	"fitclub/internal/pkg/config"
	"fitclub/internal/pkg/scanner"
	"fitclub/pkg/logger"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// 前台扫码终端：键盘模拟型（HID）扫码枪把解码结果当作一行输入写到 stdin
func main() {
	baseURL := flag.String("base-url", "", "API base url, overrides kiosk.base_url")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load config: %v", err)
	}
	if err := logger.InitLogger(cfg.App.Env, cfg.App.Debug); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	kiosk := cfg.Kiosk
	if *baseURL != "" {
		kiosk.BaseURL = *baseURL
	}
	if kiosk.StaffToken == "" {
		logger.L().Fatal("kiosk.staff_token is required (env KIOSK_STAFF_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := scanner.NewHTTPConsumer(kiosk.BaseURL, kiosk.StaffToken, kiosk.RequestTimeout)
	session := scanner.NewSession(consumer, scanner.NewTerminalCue(os.Stdout), scanner.Options{
		Cooldown:       kiosk.ScanCooldown,
		RequestTimeout: kiosk.RequestTimeout,
	})

	logger.L().Info("kiosk ready", zap.String("api", kiosk.BaseURL), zap.Duration("cooldown", kiosk.ScanCooldown))

	lines := make(chan string)
	go func() {
		defer close(lines)
		in := bufio.NewScanner(os.Stdin)
		for in.Scan() {
			lines <- in.Text()
		}
		if err := in.Err(); err != nil {
			logger.L().Error("read scanner input", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			session.Wait()
			logger.L().Info("kiosk stopped", zap.Int64("dropped_frames", session.Dropped()))
			return
		case line, ok := <-lines:
			if !ok {
				session.Wait()
				return
			}
			session.Submit(ctx, line)
		}
	}
}

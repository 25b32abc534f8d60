package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fitclub/internal/domain/member/model"
	"fitclub/internal/pkg/config"
	"fitclub/internal/pkg/scanner"
	"fitclub/pkg/utils"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// 压测：同一个入场码被大量前台终端同时扫描，只允许一次成功
func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "API base url")
		memberID = flag.String("member", "", "member id that owns an active membership")
		staffID  = flag.String("staff", "", "staff member id used for scanning")
		scans    = flag.Int("n", 1000, "concurrent scans of one token")
	)
	flag.Parse()

	if *memberID == "" || *staffID == "" {
		log.Fatal("-member and -staff are required")
	}

	// 用服务端同一个密钥签发测试 JWT
	config.LoadConfig()
	memberJWT, _, err := utils.GenerateToken(*memberID, model.RoleMember)
	if err != nil {
		log.Fatal(err)
	}
	staffJWT, _, err := utils.GenerateToken(*staffID, model.RoleStaff)
	if err != nil {
		log.Fatal(err)
	}

	token, err := issueToken(*baseURL, memberJWT)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Printf("开始压测：%d 个并发扫码，同一个入场码\n", *scans)

	consumer := scanner.NewHTTPConsumer(*baseURL, staffJWT, 30*time.Second)

	var (
		mu       sync.Mutex
		outcomes = make(map[string]int)
	)
	record := func(key string) {
		mu.Lock()
		outcomes[key]++
		mu.Unlock()
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(200)
	for i := 0; i < *scans; i++ {
		g.Go(func() error {
			res, err := consumer.Consume(context.Background(), token)
			switch {
			case err != nil:
				record("error")
			case res.OK():
				record("success")
			case res.Reason != "":
				record(res.Reason)
			default:
				record(fmt.Sprintf("code_%d", res.Code))
			}
			return nil
		})
	}
	_ = g.Wait()
	duration := time.Since(start)

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("QPS: %.2f\n", float64(*scans)/duration.Seconds())
	for k, v := range outcomes {
		fmt.Printf("%-20s %d\n", k, v)
	}
	fmt.Println("--------------------------------------------------")

	if outcomes["success"] != 1 {
		log.Fatalf("期望恰好 1 次成功，实际 %d 次", outcomes["success"])
	}
	fmt.Println("✅ 入场码只被核销一次")
}

func issueToken(baseURL, jwt string) (string, error) {
	req, err := http.NewRequest(http.MethodPost, baseURL+"/checkins/token", bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+jwt)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Code != 0 {
		return "", fmt.Errorf("code=%d reason=%s message=%s", result.Code, result.Reason, result.Message)
	}
	return result.Data.Token, nil
}

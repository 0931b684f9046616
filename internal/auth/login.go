package auth

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"ChainHoldem/config"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type LoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

type Handler struct {
	mu         sync.Mutex
	nonceStore map[string]bool
}

func NewHandler() *Handler {
	return &Handler{
		nonceStore: make(map[string]bool),
	}
}

// POST /auth/login  MetaMask personal_sign 验签换 JWT
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	h.mu.Lock()
	valid := h.nonceStore[req.Nonce]
	delete(h.nonceStore, req.Nonce) // 只允许一次
	h.mu.Unlock()
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	// 构造与 MetaMask personal_sign 完全一致的消息
	msg := "Sign this message to authenticate with ChainHoldem. Nonce: " + req.Nonce
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	hash := crypto.Keccak256Hash([]byte(prefix))

	sig := strings.TrimPrefix(req.Signature, "0x")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil || len(sigBytes) != 65 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed signature"})
		return
	}
	// 修正 V 值
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	// 恢复签名者地址
	pubKey, err := crypto.SigToPub(hash.Bytes(), sigBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verify failed"})
		return
	}
	recovered := crypto.PubkeyToAddress(*pubKey).Hex()

	if !strings.EqualFold(recovered, req.Address) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	// 验签成功 → 生成 JWT
	claims := jwt.MapClaims{
		"sub": recovered,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtStr, err := token.SignedString([]byte(config.C.JWT.Secret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jwt": jwtStr})
}

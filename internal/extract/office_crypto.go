package extract

import (
	"bytes"
	"crypto/aes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

// ECMA-376 standard encryption (the AES-ECB scheme legacy Office
// writers produce). The encrypted document is an OLE compound file with
// an EncryptionInfo stream describing the key derivation and an
// EncryptedPackage stream holding the ciphertext.

const keySpinCount = 50000

type encryptionInfo struct {
	keyBits               int
	salt                  []byte
	encryptedVerifier     []byte
	encryptedVerifierHash []byte
}

// decryptOffice walks the password candidates against the container's
// verifier and returns the decrypted OOXML package bytes plus the
// password that worked.
func decryptOffice(data []byte, passwords []string) ([]byte, string, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("open ole container: %w", err)
	}

	var infoRaw, packageRaw []byte
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		buf := make([]byte, entry.Size)
		n, _ := io.ReadFull(doc, buf)
		switch entry.Name {
		case "EncryptionInfo":
			infoRaw = buf[:n]
		case "EncryptedPackage":
			packageRaw = buf[:n]
		}
	}
	if infoRaw == nil || packageRaw == nil {
		return nil, "", fmt.Errorf("not an encrypted office container")
	}

	info, err := parseEncryptionInfo(infoRaw)
	if err != nil {
		return nil, "", err
	}

	for _, password := range passwords {
		key := deriveOfficeKey(password, info.salt, info.keyBits/8)
		if !verifyOfficeKey(key, info) {
			continue
		}
		plain, err := decryptPackage(key, packageRaw)
		if err != nil {
			return nil, "", err
		}
		return plain, password, nil
	}
	return nil, "", fmt.Errorf("no supplied password decrypts the document (%d tried)", len(passwords))
}

func parseEncryptionInfo(raw []byte) (*encryptionInfo, error) {
	if len(raw) < 12 {
		return nil, fmt.Errorf("encryption info truncated")
	}
	versionMinor := binary.LittleEndian.Uint16(raw[2:4])
	if versionMinor != 2 {
		return nil, fmt.Errorf("unsupported encryption scheme (version minor %d)", versionMinor)
	}

	headerSize := binary.LittleEndian.Uint32(raw[8:12])
	header := raw[12:]
	if uint32(len(header)) < headerSize+4 {
		return nil, fmt.Errorf("encryption header truncated")
	}
	keyBits := int(binary.LittleEndian.Uint32(header[16:20]))
	if keyBits == 0 {
		keyBits = 128
	}

	verifier := header[headerSize:]
	saltSize := binary.LittleEndian.Uint32(verifier[0:4])
	if saltSize != 16 || len(verifier) < 4+16+16+4+32 {
		return nil, fmt.Errorf("encryption verifier malformed")
	}
	return &encryptionInfo{
		keyBits:               keyBits,
		salt:                  verifier[4:20],
		encryptedVerifier:     verifier[20:36],
		encryptedVerifierHash: verifier[40:72],
	}, nil
}

// deriveOfficeKey runs the spun SHA-1 derivation over the UTF-16LE
// password and expands the final hash with the 0x36/0x5c pads.
func deriveOfficeKey(password string, salt []byte, keyLen int) []byte {
	pw := utf16le(password)

	h := sha1.Sum(append(append([]byte{}, salt...), pw...))
	buf := make([]byte, 4+sha1.Size)
	for i := range keySpinCount {
		binary.LittleEndian.PutUint32(buf[:4], uint32(i))
		copy(buf[4:], h[:])
		h = sha1.Sum(buf)
	}
	final := make([]byte, sha1.Size+4)
	copy(final, h[:])
	h = sha1.Sum(final)

	pad := func(b byte) []byte {
		block := bytes.Repeat([]byte{b}, 64)
		for i := range h {
			block[i] ^= h[i]
		}
		sum := sha1.Sum(block)
		return sum[:]
	}
	derived := append(pad(0x36), pad(0x5c)...)
	return derived[:keyLen]
}

func verifyOfficeKey(key []byte, info *encryptionInfo) bool {
	verifier, err := aesECBDecrypt(key, info.encryptedVerifier)
	if err != nil {
		return false
	}
	verifierHash, err := aesECBDecrypt(key, info.encryptedVerifierHash)
	if err != nil {
		return false
	}
	expect := sha1.Sum(verifier)
	return bytes.Equal(expect[:], verifierHash[:sha1.Size])
}

// decryptPackage strips the 8-byte plaintext-length prefix, decrypts
// the remainder and truncates to the declared length.
func decryptPackage(key, pkg []byte) ([]byte, error) {
	if len(pkg) < 8 {
		return nil, fmt.Errorf("encrypted package truncated")
	}
	size := int64(binary.LittleEndian.Uint64(pkg[:8]))
	plain, err := aesECBDecrypt(key, pkg[8:])
	if err != nil {
		return nil, err
	}
	if size > int64(len(plain)) {
		return nil, fmt.Errorf("encrypted package shorter than declared size")
	}
	return plain[:size], nil
}

func aesECBDecrypt(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		ciphertext = ciphertext[:len(ciphertext)-len(ciphertext)%block.BlockSize()]
	}
	plain := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(plain[i:], ciphertext[i:])
	}
	return plain, nil
}

func utf16le(s string) []byte {
	codes := utf16.Encode([]rune(s))
	buf := make([]byte, 2*len(codes))
	for i, c := range codes {
		binary.LittleEndian.PutUint16(buf[2*i:], c)
	}
	return buf
}

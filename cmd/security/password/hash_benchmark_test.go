package password

import "testing"

func BenchmarkHash_DefaultWorkFactor(b *testing.B) {
	pw := "this is a strong password 123!"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Hash(pw, DefaultWorkFactor); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkVerify_DefaultWorkFactor(b *testing.B) {
	pw := "this is a strong password 123!"
	h, err := Hash(pw, DefaultWorkFactor)
	if err != nil {
		b.Fatalf("Hash error: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ok, err := Verify(pw, h)
		if err != nil || !ok {
			b.Fatalf("Verify failed: ok=%v err=%v", ok, err)
		}
	}
}

func BenchmarkHash_Argon2idDefaultParams(b *testing.B) {
	cfg := DefaultConfig()
	cfg.Algorithm = AlgorithmArgon2id
	pw := "this is a strong password 123!"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cfg.Hash(pw); err != nil {
			b.Fatalf("Hash error: %v", err)
		}
	}
}

func BenchmarkValidateStrength(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ValidateStrength("Correct-Horse-Battery-Staple-9")
	}
}

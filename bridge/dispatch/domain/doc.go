// Package domain define contratos e tipos de domínio do dispatcher de requisições.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra de slots
// (alocação, cancelamento, marshaling de callbacks) dos detalhes de transporte.
package domain
